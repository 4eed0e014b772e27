// Package natspub publishes finalized features to a NATS subject.
//
// Each feature is sent as one GeoJSON Feature message. The publisher accepts any
// Conn, which *nats.Conn satisfies, so tests can substitute an in-memory fake:
//
//	nc, err := natspub.Connect(cfg.NATS.URL, "stanagfeed", logger)
//	pub := natspub.New(nc, "stanag.features", natspub.WithLogger(logger))
//	sent, err := pub.PublishStore(ctx, store)
package natspub
