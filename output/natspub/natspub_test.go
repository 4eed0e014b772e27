package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/featurestore"
	"github.com/c360/stanagfeed/geometry"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/schema"
	fixtures "github.com/c360/stanagfeed/testutil"
)

var _ Conn = (*fixtures.MockConn)(nil)

func testStore(t *testing.T, n int) *featurestore.Store {
	t.Helper()
	engine := schema.NewEngine()
	decoder := geometry.NewDecoder()
	features := make([]featurestore.Feature, 0, n)
	for i := 0; i < n; i++ {
		attrs, err := engine.Infer(map[string]any{"name": fmt.Sprintf("f%d", i)})
		require.NoError(t, err)
		res, err := decoder.Decode(map[string]any{"type": "Point", "coordinates": []any{float64(i), 1.5}})
		require.NoError(t, err)
		decoder.Commit(res)
		features = append(features, featurestore.NewFeature(int64(i), engine.Catalog(), attrs, res))
	}
	st, err := featurestore.New(featurestore.Config{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Load(featurestore.Contents{
		Catalog:  engine.Catalog(),
		Features: features,
		Extent:   decoder.Extent(),
		WKBType:  geometry.Point,
		Count:    n,
	}))
	return st
}

func TestPublishStore(t *testing.T) {
	conn := fixtures.NewMockConn()
	m := metric.NewMetrics()
	pub := New(conn, "stanag.features", WithMetrics(m, "test"))

	sent, err := pub.PublishStore(context.Background(), testStore(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	require.Len(t, conn.Messages("stanag.features"), 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal(conn.Messages("stanag.features")[0], &first))
	assert.Equal(t, "Feature", first["type"])
	props := first["properties"].(map[string]any)
	assert.Equal(t, "f0", props["name"])

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FeaturesEmitted.WithLabelValues("test", "published")))
}

func TestPublishStore_Failures(t *testing.T) {
	t.Run("publish error stops", func(t *testing.T) {
		conn := fixtures.NewMockConn()
		conn.FailAfter = 1
		sent, err := New(conn, "s").PublishStore(context.Background(), testStore(t, 3))
		require.Error(t, err)
		assert.Equal(t, 1, sent)
	})

	t.Run("flush error", func(t *testing.T) {
		conn := fixtures.NewMockConn()
		conn.FlushErr = fmt.Errorf("nats: timeout")
		sent, err := New(conn, "s").PublishStore(context.Background(), testStore(t, 2))
		require.Error(t, err)
		assert.Zero(t, sent)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		conn := fixtures.NewMockConn()
		_, err := New(conn, "s").PublishStore(ctx, testStore(t, 2))
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, conn.Messages("s"))
	})

	t.Run("invalid store", func(t *testing.T) {
		st := testStore(t, 1)
		st.Invalidate("Invalid STANAG JSON message received (TYPE).")
		_, err := New(fixtures.NewMockConn(), "s").PublishStore(context.Background(), st)
		require.Error(t, err)
	})
}

func TestConnect_RetriesThenFails(t *testing.T) {
	cfg := errors.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}
	nc, err := Connect(context.Background(), "nats://127.0.0.1:1", "natspub-test", cfg, nil)
	require.Error(t, err)
	assert.Nil(t, nc)
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}
