package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/c360/stanagfeed/featurestore"
	"github.com/c360/stanagfeed/health"
	"github.com/c360/stanagfeed/ingest"
	"github.com/c360/stanagfeed/jose"
	"github.com/c360/stanagfeed/metric"
)

const maxEnvelopeSize = 32 << 20

type serveOptions struct {
	Addr            string
	ShutdownTimeout time.Duration
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP ingestion endpoint with health and metrics",
		Long: `Serve POST /ingest for envelopes, GET /features for the last valid store as a
GeoJSON feature collection, and GET /healthz. Prometheus metrics are served on
metrics.addr when metrics.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Addr, "addr", getEnv("STANAGFEED_ADDR", ":8080"), "Listen address (env: STANAGFEED_ADDR)")
	flags.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("STANAGFEED_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: STANAGFEED_SHUTDOWN_TIMEOUT)")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	logger := root.logger
	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	pipeOpts := []ingest.Option{
		ingest.WithMetricsRegistry(registry),
		ingest.WithMonitor(monitor),
	}
	pub, conn, err := root.connectPublisher(ctx, registry.CoreMetrics(), "serve")
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
		pipeOpts = append(pipeOpts, ingest.WithPublisher(pub))
	}

	p, err := root.newPipeline("serve", pipeOpts...)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := newServer(p, root.cfg.Auth(), monitor, logger)
	defer srv.Close()

	servers := []*http.Server{{Addr: opts.Addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}}
	if root.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		servers = append(servers, &http.Server{Addr: root.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("HTTP server listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen %s: %w", s.Addr, err)
			}
		}(s)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "addr", s.Addr, "error", err)
		}
	}
	logger.Info("Shutdown complete")
	return runErr
}

// server exposes one pipeline over HTTP. Ingests are serialized; the last valid store
// answers feature queries until the next valid ingest replaces it.
type server struct {
	pipeline *ingest.Pipeline
	auth     jose.AuthSettings
	monitor  *health.Monitor
	logger   *slog.Logger

	ingestMu sync.Mutex

	mu    sync.RWMutex
	store *featurestore.Store
}

func newServer(p *ingest.Pipeline, auth jose.AuthSettings, monitor *health.Monitor, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{pipeline: p, auth: auth, monitor: monitor, logger: logger}
}

func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/features", s.handleFeatures)
	mux.Handle("/healthz", s.monitor.Handler(appName))
	return mux
}

// Close releases the current store.
func (s *server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeSize+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > maxEnvelopeSize {
		http.Error(w, "envelope too large", http.StatusRequestEntityTooLarge)
		return
	}

	s.ingestMu.Lock()
	store, report := s.pipeline.Parse(r.Context(), body, s.auth)
	s.ingestMu.Unlock()

	out := ingestOutput{Report: report}
	status := http.StatusOK
	switch {
	case store == nil:
		status = http.StatusInternalServerError
	case !store.IsValid():
		out.Store = summarize(store)
		_ = store.Close()
		status = http.StatusUnprocessableEntity
	default:
		out.Store = summarize(store)
		s.replace(store)
	}
	writeJSON(w, status, out)
}

func (s *server) replace(store *featurestore.Store) {
	s.mu.Lock()
	old := s.store
	s.store = store
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

func (s *server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := featureRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		http.Error(w, "no features ingested", http.StatusNotFound)
		return
	}

	it := s.store.GetFeatures(req)
	defer it.Close()
	fc := geojson.NewFeatureCollection()
	for f, ok := it.Next(); ok; f, ok = it.Next() {
		fc.Append(f.GeoJSON())
	}
	if err := it.Err(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// featureRequest reads bbox, filter, id and limit query parameters.
func featureRequest(r *http.Request) (featurestore.Request, error) {
	q := r.URL.Query()
	opts := ingestOptions{BBox: q.Get("bbox"), Filter: q.Get("filter")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return featurestore.Request{}, fmt.Errorf("limit: %w", err)
		}
		opts.Limit = n
	}
	for _, v := range q["id"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return featurestore.Request{}, fmt.Errorf("id: %w", err)
		}
		opts.IDs = append(opts.IDs, id)
	}
	return opts.request()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
