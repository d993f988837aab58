// Package server exposes the matcher over HTTP: batch matching of whole
// traces and online sessions fed one sample at a time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kuanb/gosm-matcher/markov"
	"kuanb/gosm-matcher/metrics"
	"kuanb/gosm-matcher/routing"
)

const maxBodyBytes = 32 << 20

var errBadRequest = errors.New("bad request")

type Options struct {
	// K and T bound the window of session states.
	K int
	T time.Duration

	SessionTTL      time.Duration
	SessionCapacity uint64
	BatchLimit      int
	RequestTimeout  time.Duration
	MetricsPath     string
}

// Server holds the matcher and the open sessions for handling requests
type Server struct {
	matcher  *routing.Matcher
	sessions *Sessions
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options
}

// New creates a server. met may be nil, which disables metrics.
func New(matcher *routing.Matcher, met *metrics.Metrics, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 1
	}
	if met != nil {
		matcher = matcher.WithObserver(met)
	}
	s := &Server{
		matcher: matcher,
		metrics: met,
		logger:  logger,
		opts:    opts,
	}
	s.sessions = NewSessions(opts.SessionTTL, opts.SessionCapacity, func() *routing.MatchState {
		return s.matcher.NewState(opts.K, opts.T)
	})
	if met != nil {
		s.sessions.onCount = func(delta int) { met.ActiveSessions.Add(float64(delta)) }
	}
	return s
}

// Start runs background session expiry; Close stops it.
func (s *Server) Start() { s.sessions.Start() }

func (s *Server) Close() { s.sessions.Stop() }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "POST /match", s.handleMatch)
	s.handle(mux, "POST /match/batch", s.handleBatch)
	s.handle(mux, "POST /sessions", s.handleCreateSession)
	s.handle(mux, "POST /sessions/{id}/samples", s.handlePush)
	s.handle(mux, "GET /sessions/{id}", s.handleSequence)
	s.handle(mux, "DELETE /sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		path := s.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metrics.Handler())
	}

	var h http.Handler = mux
	if s.opts.RequestTimeout > 0 {
		h = http.TimeoutHandler(h, s.opts.RequestTimeout, `{"error":"request timed out"}`)
	}
	return h
}

func (s *Server) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if s.metrics != nil {
		_, path, _ := strings.Cut(pattern, " ")
		h = s.metrics.Instrument(path, h)
	}
	mux.Handle(pattern, h)
}

// handleMatch matches one GeoJSON trace.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	fc, err := s.match(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fc)
}

// handleBatch matches a JSON array of GeoJSON traces concurrently.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var traces []json.RawMessage
	if err := json.Unmarshal(body, &traces); err != nil {
		s.writeError(w, fmt.Errorf("%w: expected an array of traces: %v", errBadRequest, err))
		return
	}

	results := make([]*geojson.FeatureCollection, len(traces))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.opts.BatchLimit)
	for i, trace := range traces {
		g.Go(func() error {
			fc, err := s.match(ctx, trace)
			if err != nil {
				return fmt.Errorf("trace %d: %w", i, err)
			}
			results[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) match(ctx context.Context, data []byte) (*geojson.FeatureCollection, error) {
	samples, err := routing.DecodeSamples(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	start := time.Now()
	res, err := s.matcher.MatchAll(ctx, samples)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.MatchLatency.Observe(time.Since(start).Seconds())
	}
	s.logger.Info("matched trace",
		zap.Int("samples", len(samples)),
		zap.Int("lines", len(res.Geometry)),
		zap.Float64("confidence", res.Confidence),
		zap.Duration("elapsed", time.Since(start)))
	return routing.EncodeResult(res), nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session", id))
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handlePush feeds samples to a session and returns the estimate for the
// last of them. A body with out of order samples is rejected as a whole.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	samples, err := routing.DecodeSamples(body)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	fc := geojson.NewFeatureCollection()
	err = s.sessions.With(r.PathValue("id"), func(state *routing.MatchState) error {
		vector, err := state.PushAll(samples)
		if err != nil {
			return err
		}
		if est, ok := state.Estimate(); ok {
			fc.Append(routing.EncodeMatch(est))
		}
		fc.ExtraMembers = geojson.Properties{"candidates": len(vector)}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	var res *routing.Result
	err := s.sessions.With(r.PathValue("id"), func(state *routing.MatchState) error {
		res = state.Result()
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, routing.EncodeResult(res))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", errBadRequest, err)
	}
	return body, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, markov.ErrContractViolation):
		return http.StatusConflict
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, routing.ErrNoSamples):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
