package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/featurestore"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/pkg/retry"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

var _ Conn = (*nats.Conn)(nil)

// Connect dials NATS with reconnect handling logged through logger. The initial
// connection is retried with the backoff in retryCfg.
func Connect(ctx context.Context, url, name string, retryCfg errors.RetryConfig, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	}

	attempt := 0
	return retry.DoWithResult(ctx, retryCfg, func() (*nats.Conn, error) {
		attempt++
		nc, err := nats.Connect(url, opts...)
		if err != nil {
			logger.Warn("NATS connection attempt failed", "url", url, "attempt", attempt, "error", err)
			return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
				"natspub", "Connect", "connect")
		}
		return nc, nil
	})
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records published and failed counts under service.
func WithMetrics(m *metric.Metrics, service string) Option {
	return func(p *Publisher) {
		p.metrics = m
		p.service = service
	}
}

// Publisher sends features to a single subject.
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
	metrics *metric.Metrics
	service string
}

// New creates a publisher for subject.
func New(conn Conn, subject string, opts ...Option) *Publisher {
	p := &Publisher{
		conn:    conn,
		subject: subject,
		logger:  slog.Default(),
		service: "natspub",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subject returns the target subject.
func (p *Publisher) Subject() string { return p.subject }

// Publish sends one feature.
func (p *Publisher) Publish(f featurestore.Feature) error {
	data, err := json.Marshal(f.GeoJSON())
	if err != nil {
		return errors.WrapInvalid(err, "Publisher", "Publish", fmt.Sprintf("encode feature %d", f.ID))
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.WrapTransient(err, "Publisher", "Publish", fmt.Sprintf("publish feature %d", f.ID))
	}
	return nil
}

// PublishStore sends every feature of a valid store in id order and flushes. It stops
// at the first failure and returns the number of features sent before it.
func (p *Publisher) PublishStore(ctx context.Context, store *featurestore.Store) (int, error) {
	if !store.IsValid() {
		return 0, errors.WrapInvalid(errors.ErrEnvelope, "Publisher", "PublishStore", "publish invalid store")
	}

	it := store.GetFeatures(featurestore.Request{})
	defer it.Close()

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			p.record("canceled", sent)
			return sent, errors.WrapTransient(err, "Publisher", "PublishStore", "publish")
		}
		f, ok := it.Next()
		if !ok {
			break
		}
		if err := p.Publish(f); err != nil {
			p.logger.Error("Feature publish failed", "subject", p.subject, "id", f.ID, "error", err)
			p.record("failed", sent)
			return sent, err
		}
		sent++
	}

	if err := p.conn.FlushWithContext(ctx); err != nil {
		p.record("failed", 0)
		return 0, errors.WrapTransient(err, "Publisher", "PublishStore", "flush")
	}
	p.record("", sent)
	p.logger.Debug("Features published", "subject", p.subject, "count", sent)
	return sent, nil
}

// record counts n published features and, when failStatus is set, one failure.
func (p *Publisher) record(failStatus string, n int) {
	if p.metrics == nil {
		return
	}
	if n > 0 {
		p.metrics.RecordEmitted(p.service, "published", n)
	}
	if failStatus != "" {
		p.metrics.RecordEmitted(p.service, failStatus, 1)
	}
}
