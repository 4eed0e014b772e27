package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/featurestore"
	"github.com/c360/stanagfeed/geometry"
	"github.com/c360/stanagfeed/health"
	"github.com/c360/stanagfeed/jose"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/output/natspub"
	"github.com/c360/stanagfeed/pkg/cache"
	"github.com/c360/stanagfeed/schema"
	"github.com/c360/stanagfeed/transport"
)

// Config controls a Pipeline.
type Config struct {
	// Service labels metrics, logs and health statuses.
	Service string `json:"service" yaml:"service"`
	// PEMURL, when set, requires envelopes to arrive as RS256 JWS signed by the key
	// published there.
	PEMURL string `json:"pem_url,omitempty" yaml:"pem_url,omitempty"`
	// Store configures the stores produced by Parse.
	Store featurestore.Config `json:"store" yaml:"store"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetricsRegistry records pipeline metrics and key cache statistics.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(p *Pipeline) {
		p.registry = registry
	}
}

// WithKeyCache shares keys with other pipelines or decryptors.
func WithKeyCache(keys *jose.KeyCache) Option {
	return func(p *Pipeline) {
		p.keys = keys.Retain()
	}
}

// WithPublisher publishes the features of every valid store.
func WithPublisher(pub *natspub.Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = pub
	}
}

// WithMonitor reports the health of every run.
func WithMonitor(mon *health.Monitor) Option {
	return func(p *Pipeline) {
		p.monitor = mon
	}
}

// Pipeline parses envelopes. Parse calls must not overlap; the stores they return
// are independent and may be read concurrently.
type Pipeline struct {
	cfg       Config
	fetcher   transport.Fetcher
	envelopes *envelopeValidator
	keys      *jose.KeyCache
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	metrics   *metric.Metrics
	publisher *natspub.Publisher
	monitor   *health.Monitor
}

// New creates a pipeline fetching keys and certificates through fetcher.
func New(fetcher transport.Fetcher, cfg Config, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Pipeline", "New", "fetcher check")
	}
	if cfg.Service == "" {
		cfg.Service = "ingest"
	}

	envelopes, err := newEnvelopeValidator()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		envelopes: envelopes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("service", cfg.Service)

	if p.registry != nil {
		p.metrics = p.registry.CoreMetrics()
	}
	if p.keys == nil {
		var keyOpts []cache.Option[jose.KeyRecord]
		if p.registry != nil {
			keyOpts = append(keyOpts, cache.WithMetrics[jose.KeyRecord](p.registry, cfg.Service+"_keys"))
		}
		keys, err := jose.NewKeyCache(keyOpts...)
		if err != nil {
			return nil, errors.WrapFatal(err, "Pipeline", "New", "key cache creation")
		}
		p.keys = keys
	}
	return p, nil
}

// Close releases the pipeline's reference to its key cache.
func (p *Pipeline) Close() {
	p.keys.Release()
}

// Keys returns the key cache shared by all runs of this pipeline.
func (p *Pipeline) Keys() *jose.KeyCache {
	return p.keys
}

// pending is a kept record awaiting the final catalog.
type pending struct {
	id    int64
	attrs map[string]schema.Value
	geom  geometry.Result
}

// run holds the state of one Parse call.
type run struct {
	p       *Pipeline
	ctx     context.Context
	report  *Report
	store   *featurestore.Store
	logger  *slog.Logger
	engine  *schema.Engine
	decoder *geometry.Decoder
	wkbType geometry.Type
	kept    []pending
}

// Parse ingests one envelope. The returned store is invalid when the envelope was
// rejected, and nil only when no store could be created. The caller owns the store
// and should Close it.
func (p *Pipeline) Parse(ctx context.Context, message []byte, auth jose.AuthSettings) (*featurestore.Store, *Report) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Valid:   true,
	}
	logger := p.logger.With("run_id", report.RunID)

	store, err := featurestore.New(p.cfg.Store, nil, logger)
	if err != nil {
		logger.Error("Store creation failed", "error", err)
		report.Valid = false
		report.EnvelopeError = err.Error()
		return nil, report
	}

	r := &run{
		p:       p,
		ctx:     ctx,
		report:  report,
		store:   store,
		logger:  logger,
		engine:  schema.NewEngine(),
		decoder: geometry.NewDecoder(),
	}
	r.execute(message, auth)
	r.finish()
	return store, report
}

func (r *run) execute(message []byte, auth jose.AuthSettings) {
	if r.p.cfg.PEMURL != "" {
		payload, ok := r.verifySignature(message)
		if !ok {
			return
		}
		message = payload
	}

	tokens, err := r.p.envelopes.Tokens(message)
	if err != nil {
		r.rejectEnvelope(err)
		return
	}
	r.report.Attempted = len(tokens)
	r.logger.Debug("Envelope accepted", "objects", len(tokens))

	dec, err := jose.NewDecryptor(r.p.fetcher, auth,
		jose.WithKeyCache(r.p.keys),
		jose.WithLogger(r.logger),
		jose.WithMetrics(r.p.metrics, r.p.cfg.Service))
	if err != nil {
		r.rejectEnvelope(err)
		return
	}
	defer dec.Close()

	for i, token := range tokens {
		r.processObject(dec, i, token)
	}
	r.load()
}

func (r *run) verifySignature(message []byte) ([]byte, bool) {
	v := jose.NewVerifier(r.ctx, r.p.fetcher, r.p.cfg.PEMURL, string(message))
	err := v.Verify()
	if r.p.metrics != nil {
		r.p.metrics.RecordSignatureCheck(r.p.cfg.Service, err == nil)
	}
	if err != nil {
		r.rejectEnvelope(&EnvelopeError{Diag: DiagSignature, Index: -1, Details: []string{err.Error()}})
		return nil, false
	}
	return []byte(v.Message()), true
}

func (r *run) rejectEnvelope(err error) {
	msg := err.Error()
	if env, ok := err.(*EnvelopeError); ok {
		r.logger.Warn("Envelope rejected", "diagnostic", env.Diag, "index", env.Index, "details", env.Details)
	} else {
		r.logger.Error("Envelope rejected", "error", err)
	}
	r.report.Valid = false
	r.report.EnvelopeError = msg
	r.store.Invalidate(msg)
	if r.p.metrics != nil {
		r.p.metrics.RecordError(r.p.cfg.Service, errors.Reason(errors.ErrEnvelope))
	}
}

// processObject runs one object through decrypt, schema inference, geometry decoding
// and id assignment. Catalog changes made before a later step fails are kept; the
// extent only grows once the record is kept.
func (r *run) processObject(dec *jose.Decryptor, index int, token string) {
	if err := dec.SetEncryptedText(r.ctx, token); err != nil {
		r.skip(index, dec.KeyID(), dec.ErrorMessage(), err)
		return
	}
	plaintext, err := dec.Message()
	if err != nil {
		r.skip(index, dec.KeyID(), dec.ErrorMessage(), err)
		return
	}
	kid := dec.KeyID()

	rec, msg, err := decodeRecord(plaintext)
	if err != nil {
		r.skip(index, kid, msg, err)
		return
	}

	attrs, err := r.engine.Infer(rec.properties)
	if err != nil {
		r.skip(index, kid, msgProperty, err)
		return
	}

	geom, err := r.decoder.Decode(rec.geometry)
	if err != nil {
		r.skip(index, kid, geometryMessage(err), err)
		return
	}

	id, idValue, err := r.engine.AssignID(rec.id, int64(len(r.kept)))
	if err != nil {
		r.skip(index, kid, msgCreate, err)
		return
	}
	if idValue != nil {
		attrs[schema.IDField] = *idValue
	}

	r.decoder.Commit(geom)
	r.wkbType = geom.Type
	r.kept = append(r.kept, pending{id: id, attrs: attrs, geom: geom})
	if r.p.metrics != nil {
		r.p.metrics.RecordRecord(r.p.cfg.Service, "processed")
	}
}

func (r *run) skip(index int, kid, msg string, err error) {
	reason := errors.Reason(err)
	if msg == "" {
		msg = err.Error()
	}
	r.logger.Warn("Record skipped", "index", index, "kid", kid, "reason", reason, "error", err)
	r.report.Errors = append(r.report.Errors, RecordError{
		Index:   index,
		KeyID:   kid,
		Message: msg,
		Reason:  reason,
		Err:     err,
	})
	r.store.PushError(msg)
	if r.p.metrics != nil {
		r.p.metrics.RecordRecord(r.p.cfg.Service, "skipped")
		r.p.metrics.RecordError(r.p.cfg.Service, reason)
	}
}

// load materializes kept records against the final catalog.
func (r *run) load() {
	catalog := r.engine.Catalog()
	features := make([]featurestore.Feature, 0, len(r.kept))
	for _, k := range r.kept {
		features = append(features, featurestore.NewFeature(k.id, catalog, k.attrs, k.geom))
	}

	err := r.store.Load(featurestore.Contents{
		Catalog:  catalog,
		Features: features,
		Extent:   r.decoder.Extent(),
		WKBType:  r.wkbType,
		Count:    len(r.kept),
	})
	if err != nil {
		r.rejectEnvelope(err)
		return
	}
	r.report.Processed = len(r.kept)
}

func (r *run) finish() {
	report := r.report
	service := r.p.cfg.Service

	if report.Valid && report.Processed > 0 && r.p.publisher != nil {
		sent, err := r.p.publisher.PublishStore(r.ctx, r.store)
		report.Published = sent
		if err != nil {
			report.PublishError = err.Error()
			r.logger.Error("Publishing features failed", "subject", r.p.publisher.Subject(), "sent", sent, "error", err)
		}
	}

	report.Duration = time.Since(report.Started)
	report.Health = health.FromRun(service, report.Attempted, report.Processed, report.Valid, report.LastError())
	if report.Health.Metrics != nil {
		report.Health.Metrics.Duration = report.Duration
	}
	if r.p.monitor != nil {
		r.p.monitor.Update(service, report.Health)
	}

	if m := r.p.metrics; m != nil {
		status := "valid"
		if !report.Valid {
			status = "invalid"
		}
		m.RecordEnvelope(service, status)
		m.RecordParseDuration(service, report.Duration)
		m.RecordStoreSize(service, r.store.FeatureCount(), len(r.store.Fields()))
		m.RecordHealth(service, report.Health.Level())
	}

	r.logger.Info("Envelope ingested",
		"valid", report.Valid,
		"attempted", report.Attempted,
		"processed", report.Processed,
		"skipped", report.Skipped(),
		"fields", len(r.store.Fields()),
		"extent", r.store.Extent().String(),
		"duration", report.Duration)
}
