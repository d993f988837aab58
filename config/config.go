// Package config loads the matcher configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/routing"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Graph    GraphConfig    `yaml:"graph"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	State    StateConfig    `yaml:"state"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// BatchLimit caps the trajectories of one batch request matched at once.
	BatchLimit int `yaml:"batchLimit"`
}

// GraphConfig selects the road input and its spatial index.
type GraphConfig struct {
	PBF      string   `yaml:"pbf"`
	GeoJSON  string   `yaml:"geojson"`
	Index    string   `yaml:"index"`
	Capacity int      `yaml:"capacity"`
	Classes  []string `yaml:"classes"`
	// Operator is "geography" (lon/lat) or "cartesian".
	Operator string `yaml:"operator"`
}

// Op returns the geometry operator named by Operator.
func (g GraphConfig) Op() geom.Operator {
	if g.Operator == "cartesian" {
		return geom.Cartesian{}
	}
	return geom.Geography{}
}

type MatcherConfig struct {
	Sigma         float64 `yaml:"sigma"`
	SigmaAzimuth  float64 `yaml:"sigmaAzimuth"`
	Lambda        float64 `yaml:"lambda"`
	MaxRadius     float64 `yaml:"maxRadius"`
	MaxDistance   float64 `yaml:"maxDistance"`
	MaxCandidates int     `yaml:"maxCandidates"`
	Cost          string  `yaml:"cost"`
}

// Routing converts the section into matcher parameters.
func (m MatcherConfig) Routing() routing.MatcherConfig {
	return routing.MatcherConfig{
		Sigma:         m.Sigma,
		SigmaAzimuth:  m.SigmaAzimuth,
		Lambda:        m.Lambda,
		MaxRadius:     m.MaxRadius,
		MaxDistance:   m.MaxDistance,
		MaxCandidates: m.MaxCandidates,
	}
}

// StateConfig bounds the window of online sessions; negative is unbounded.
type StateConfig struct {
	K int           `yaml:"k"`
	T time.Duration `yaml:"t"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// RuntimeInterval is how often runtime statistics are logged; zero
	// disables it.
	RuntimeInterval time.Duration `yaml:"runtimeInterval"`
}

type SessionsConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity uint64        `yaml:"capacity"`
}

// Load reads the config file at path, if any, over the defaults and then
// applies GOSM_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	m := routing.DefaultMatcherConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			BatchLimit:      4,
		},
		Graph: GraphConfig{
			PBF:      "./data/example.osm.pbf",
			Index:    "str",
			Capacity: 16,
			Operator: "geography",
		},
		Matcher: MatcherConfig{
			Sigma:         m.Sigma,
			SigmaAzimuth:  m.SigmaAzimuth,
			Lambda:        m.Lambda,
			MaxRadius:     m.MaxRadius,
			MaxDistance:   m.MaxDistance,
			MaxCandidates: m.MaxCandidates,
			Cost:          "time-priority",
		},
		State: StateConfig{
			K: 50,
			T: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Path:            "/metrics",
			RuntimeInterval: 30 * time.Second,
		},
		Sessions: SessionsConfig{
			TTL:      10 * time.Minute,
			Capacity: 10000,
		},
	}
}

func (c *Config) validate() error {
	switch {
	case c.Matcher.Sigma <= 0:
		return fmt.Errorf("matcher.sigma must be positive, got %v", c.Matcher.Sigma)
	case c.Matcher.MaxRadius <= 0:
		return fmt.Errorf("matcher.maxRadius must be positive, got %v", c.Matcher.MaxRadius)
	case c.Matcher.MaxCandidates == 0:
		return fmt.Errorf("matcher.maxCandidates must not be zero")
	case c.Server.BatchLimit <= 0:
		return fmt.Errorf("server.batchLimit must be positive, got %d", c.Server.BatchLimit)
	}
	switch c.Graph.Operator {
	case "geography", "cartesian":
	default:
		return fmt.Errorf("graph.operator: unknown operator %q", c.Graph.Operator)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"GOSM_SERVER_ADDR":    &cfg.Server.Addr,
		"GOSM_GRAPH_PBF":      &cfg.Graph.PBF,
		"GOSM_GRAPH_GEOJSON":  &cfg.Graph.GeoJSON,
		"GOSM_GRAPH_INDEX":    &cfg.Graph.Index,
		"GOSM_GRAPH_OPERATOR": &cfg.Graph.Operator,
		"GOSM_MATCHER_COST":   &cfg.Matcher.Cost,
		"GOSM_LOGGING_LEVEL":  &cfg.Logging.Level,
		"GOSM_LOGGING_FORMAT": &cfg.Logging.Format,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("GOSM_GRAPH_CLASSES"); v != "" {
		cfg.Graph.Classes = strings.Split(v, ",")
	}

	floats := map[string]*float64{
		"GOSM_MATCHER_SIGMA":        &cfg.Matcher.Sigma,
		"GOSM_MATCHER_LAMBDA":       &cfg.Matcher.Lambda,
		"GOSM_MATCHER_MAX_RADIUS":   &cfg.Matcher.MaxRadius,
		"GOSM_MATCHER_MAX_DISTANCE": &cfg.Matcher.MaxDistance,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}

	ints := map[string]*int{
		"GOSM_STATE_K":                &cfg.State.K,
		"GOSM_MATCHER_MAX_CANDIDATES": &cfg.Matcher.MaxCandidates,
		"GOSM_SERVER_BATCH_LIMIT":     &cfg.Server.BatchLimit,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"GOSM_STATE_T":         &cfg.State.T,
		"GOSM_SESSIONS_TTL":    &cfg.Sessions.TTL,
		"GOSM_REQUEST_TIMEOUT": &cfg.Server.RequestTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("GOSM_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GOSM_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}
