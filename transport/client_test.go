package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/stanagfeed/errors"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.Retry = errors.RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
	return cfg
}

func TestClient_GetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "abc", r.URL.Query().Get("key_verifier"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	res := <-client.Get(context.Background(), server.URL+"/keys/1?key_verifier=abc", "application/json")
	require.NoError(t, res.Err)
	assert.Equal(t, NoError, res.Code)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(res.Body))
}

func TestClient_ChannelClosedAfterResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	done := client.Get(context.Background(), server.URL, "")
	<-done
	_, open := <-done
	assert.False(t, open)
}

func TestClient_ServerException(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	res := <-client.Get(context.Background(), server.URL, "")
	require.Error(t, res.Err)
	assert.Equal(t, ServerExceptionError, res.Code)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.ErrorIs(t, res.Err, errors.ErrServerException)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("pem"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	res := <-client.Get(context.Background(), server.URL, "text/plain")
	require.NoError(t, res.Err)
	assert.Equal(t, "pem", string(res.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	res := <-client.Get(context.Background(), url, "")
	require.Error(t, res.Err)
	assert.Equal(t, NetworkError, res.Code)
	assert.True(t, errors.IsTransient(res.Err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := <-client.Get(ctx, server.URL, "")
	require.Error(t, res.Err)
	assert.Equal(t, TimeoutError, res.Code)
}

func TestClient_PostWithBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Username = "alice"
	cfg.Password = "secret"
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	res := <-client.Post(context.Background(), server.URL, "application/json", []byte(`{"a":1}`))
	require.NoError(t, res.Err)
	assert.Equal(t, `{"a":1}`, string(res.Body))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "no_error", NoError.String())
	assert.Equal(t, "network_error", NetworkError.String())
	assert.Equal(t, "timeout_error", TimeoutError.String())
	assert.Equal(t, "server_exception", ServerExceptionError.String())
	assert.Equal(t, "application_error", ApplicationLevelError.String())
	assert.Equal(t, "unknown", ErrorCode(42).String())
}
