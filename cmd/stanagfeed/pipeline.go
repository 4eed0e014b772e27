package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/featurestore"
	"github.com/c360/stanagfeed/ingest"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/output/natspub"
)

// newPipeline builds an ingestion pipeline from the loaded configuration.
func (o *rootOptions) newPipeline(service string, extra ...ingest.Option) (*ingest.Pipeline, error) {
	client, err := o.fetcher()
	if err != nil {
		return nil, err
	}
	cfg := ingest.Config{
		Service: service,
		PEMURL:  o.cfg.Signature.PEMURL,
		Store:   featurestore.Config{SpatialIndex: o.cfg.Index},
	}
	opts := append([]ingest.Option{ingest.WithLogger(o.logger)}, extra...)
	p, err := ingest.New(client, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return p, nil
}

// connectPublisher dials NATS when a URL is configured. The returned connection is nil
// when publishing is disabled.
func (o *rootOptions) connectPublisher(ctx context.Context, m *metric.Metrics, service string) (*natspub.Publisher, *nats.Conn, error) {
	if o.cfg.NATS.URL == "" {
		return nil, nil, nil
	}
	conn, err := natspub.Connect(ctx, o.cfg.NATS.URL, appName, errors.DefaultRetryConfig(), o.logger)
	if err != nil {
		return nil, nil, err
	}
	opts := []natspub.Option{natspub.WithLogger(o.logger)}
	if m != nil {
		opts = append(opts, natspub.WithMetrics(m, service))
	}
	return natspub.New(conn, o.cfg.NATS.Subject, opts...), conn, nil
}

// readInput reads a file argument, with "-" meaning stdin.
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
