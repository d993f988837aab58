package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kuanb/gosm-matcher/config"
	"kuanb/gosm-matcher/logging"
	"kuanb/gosm-matcher/metrics"
	"kuanb/gosm-matcher/routing"
	"kuanb/gosm-matcher/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flags shared by the subcommands; set values override the config file.
type flags struct {
	config  string
	pbf     string
	geojson string
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "gosm-matcher",
		Short:         "HMM map matching on OpenStreetMap road graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&f.config, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&f.pbf, "pbf", "", "OSM PBF file to load roads from")
	cmd.PersistentFlags().StringVar(&f.geojson, "geojson", "", "GeoJSON file of road records, instead of a PBF file")

	cmd.AddCommand(newServeCommand(f), newMatchCommand(f))
	return cmd
}

func (f *flags) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, nil, err
	}
	if f.pbf != "" {
		cfg.Graph.PBF = f.pbf
	}
	if f.geojson != "" {
		cfg.Graph.GeoJSON = f.geojson
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCommand(f *flags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the matching HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("gosm-matcher starting")
	matcher, err := newMatcher(cfg, logger)
	if err != nil {
		return err
	}

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		met = metrics.New(reg)
	}
	if cfg.Metrics.RuntimeInterval > 0 {
		go metrics.LogRuntime(ctx, logger.Named("runtime"), cfg.Metrics.RuntimeInterval)
	}

	srv := server.New(matcher, met, server.Options{
		K:               cfg.State.K,
		T:               cfg.State.T,
		SessionTTL:      cfg.Sessions.TTL,
		SessionCapacity: cfg.Sessions.Capacity,
		BatchLimit:      cfg.Server.BatchLimit,
		RequestTimeout:  cfg.Server.RequestTimeout,
		MetricsPath:     cfg.Metrics.Path,
	}, logger.Named("server"))
	srv.Start()
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newMatchCommand(f *flags) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a GeoJSON trace and print the result as GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			data, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			samples, err := routing.DecodeSamples(data)
			if err != nil {
				return err
			}

			matcher, err := newMatcher(cfg, logger)
			if err != nil {
				return err
			}
			res, err := matcher.MatchAll(cmd.Context(), samples)
			if err != nil {
				return err
			}
			logger.Info("matched trace",
				zap.Int("samples", len(samples)),
				zap.Float64("confidence", res.Confidence))

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(routing.EncodeResult(res))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "GeoJSON trace file, - or empty for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, empty for stdout")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
