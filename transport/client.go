package transport

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/pkg/tlsutil"
)

// ErrorCode classifies the outcome of a request.
type ErrorCode int

const (
	// NoError means the request completed with a 2xx response.
	NoError ErrorCode = iota
	// NetworkError means the request could not be delivered.
	NetworkError
	// TimeoutError means the request or the caller's context timed out.
	TimeoutError
	// ServerExceptionError means the server answered with a non-2xx status.
	ServerExceptionError
	// ApplicationLevelError means the response was delivered but its content was unusable.
	ApplicationLevelError
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "no_error"
	case NetworkError:
		return "network_error"
	case TimeoutError:
		return "timeout_error"
	case ServerExceptionError:
		return "server_exception"
	case ApplicationLevelError:
		return "application_error"
	default:
		return "unknown"
	}
}

// Result is the completion of one request.
type Result struct {
	Body       []byte
	StatusCode int
	Code       ErrorCode
	Err        error
}

// Fetcher is the request/response contract consumed by the key and PEM clients.
type Fetcher interface {
	Get(ctx context.Context, url, accept string) <-chan Result
	Post(ctx context.Context, url, contentType string, body []byte) <-chan Result
}

// Config configures the HTTP client.
type Config struct {
	Timeout  time.Duration        `json:"timeout" yaml:"timeout"`
	Retry    errors.RetryConfig   `json:"retry" yaml:"retry"`
	TLS      tlsutil.ClientConfig `json:"tls" yaml:"tls"`
	Username string               `json:"username,omitempty" yaml:"username,omitempty"`
	Password string               `json:"password,omitempty" yaml:"password,omitempty"`
	MaxBody  int64                `json:"max_body,omitempty" yaml:"max_body,omitempty"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Retry:   errors.DefaultRetryConfig(),
		MaxBody: 4 << 20,
	}
}

// Client implements Fetcher over go-retryablehttp.
type Client struct {
	http   *retryablehttp.Client
	config Config
	logger *slog.Logger
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client. A nil logger uses slog.Default().
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultConfig().MaxBody
	}

	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "NewClient", "tls configuration")
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig, Proxy: http.ProxyFromEnvironment},
	}
	rc.RetryMax = cfg.Retry.MaxRetries
	if cfg.Retry.InitialDelay > 0 {
		rc.RetryWaitMin = cfg.Retry.InitialDelay
	}
	if cfg.Retry.MaxDelay > 0 {
		rc.RetryWaitMax = cfg.Retry.MaxDelay
	}
	rc.Logger = logger.With("component", "transport")
	// Hand the final response back instead of a synthetic "giving up" error so that
	// non-2xx statuses surface as ServerExceptionError.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{http: rc, config: cfg, logger: logger}, nil
}

// Get issues a GET request asynchronously.
func (c *Client) Get(ctx context.Context, url, accept string) <-chan Result {
	return c.start(ctx, http.MethodGet, url, accept, "", nil)
}

// Post issues a POST request asynchronously.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) <-chan Result {
	return c.start(ctx, http.MethodPost, url, "", contentType, body)
}

func (c *Client) start(ctx context.Context, method, url, accept, contentType string, body []byte) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		defer close(done)
		done <- c.do(ctx, method, url, accept, contentType, body)
	}()
	return done
}

func (c *Client) do(ctx context.Context, method, url, accept, contentType string, body []byte) Result {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Result{Code: NetworkError, Err: errors.WrapInvalid(err, "Client", method, "build request")}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		code := NetworkError
		if isTimeout(err) {
			code = TimeoutError
		}
		c.logger.Debug("Request failed", "method", method, "code", code.String(), "error", err)
		return Result{Code: code, Err: errors.WrapTransient(err, "Client", method, "request")}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBody))
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Code: NetworkError,
			Err: errors.WrapTransient(err, "Client", method, "read body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Body:       data,
			StatusCode: resp.StatusCode,
			Code:       ServerExceptionError,
			Err: errors.Wrap(fmt.Errorf("%w: status %d", errors.ErrServerException, resp.StatusCode),
				"Client", method, "request"),
		}
	}

	return Result{Body: data, StatusCode: resp.StatusCode, Code: NoError}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
