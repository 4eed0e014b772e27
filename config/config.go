package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/jose"
	"github.com/c360/stanagfeed/pkg/tlsutil"
	"github.com/c360/stanagfeed/spatialindex"
	"github.com/c360/stanagfeed/transport"
)

// Config represents the complete application configuration
type Config struct {
	KeyServer KeyServerConfig      `json:"key_server" yaml:"key_server"`
	Signature SignatureConfig      `json:"signature" yaml:"signature"`
	TLS       tlsutil.ClientConfig `json:"tls" yaml:"tls"`
	Index     spatialindex.Config  `json:"index" yaml:"index"`
	NATS      NATSConfig           `json:"nats" yaml:"nats"`
	Metrics   MetricsConfig        `json:"metrics" yaml:"metrics"`
}

// KeyServerConfig locates the key management service
type KeyServerConfig struct {
	KmsURL       string        `json:"kms_url" yaml:"kms_url"`
	KeyChallenge string        `json:"key_challenge" yaml:"key_challenge"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	Retries      int           `json:"retries" yaml:"retries"`
}

// SignatureConfig enables the JWS gate when PEMURL is set
type SignatureConfig struct {
	PEMURL string `json:"pem_url,omitempty" yaml:"pem_url,omitempty"`
}

// NATSConfig enables feature publishing when URL is set
type NATSConfig struct {
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint of the serve command
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns the compiled defaults
func Default() *Config {
	return &Config{
		KeyServer: KeyServerConfig{
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Index: spatialindex.Config{
			Precision: spatialindex.DefaultPrecision,
		},
		NATS: NATSConfig{
			Subject: "stanag.features",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Auth returns the key server settings in the form the decryptor consumes
func (c *Config) Auth() jose.AuthSettings {
	return jose.AuthSettings{
		KmsURL:       c.KeyServer.KmsURL,
		KeyChallenge: c.KeyServer.KeyChallenge,
	}
}

// Transport returns the HTTP client configuration for key and PEM fetches
func (c *Config) Transport() transport.Config {
	tc := transport.DefaultConfig()
	if c.KeyServer.Timeout > 0 {
		tc.Timeout = c.KeyServer.Timeout
	}
	tc.Retry.MaxRetries = c.KeyServer.Retries
	tc.TLS = c.TLS
	return tc
}

// Validate checks the configuration. An empty kms_url is allowed so that seal and
// verify can run without a key server.
func (c *Config) Validate() error {
	var problems []string

	if c.KeyServer.KmsURL != "" {
		if err := validateHTTPURL(c.KeyServer.KmsURL); err != nil {
			problems = append(problems, fmt.Sprintf("key_server.kms_url: %v", err))
		}
	}
	if c.KeyServer.Timeout < 0 {
		problems = append(problems, "key_server.timeout must not be negative")
	}
	if c.KeyServer.Retries < 0 {
		problems = append(problems, "key_server.retries must not be negative")
	}
	if c.Signature.PEMURL != "" {
		if err := validateHTTPURL(c.Signature.PEMURL); err != nil {
			problems = append(problems, fmt.Sprintf("signature.pem_url: %v", err))
		}
	}
	if c.Index.Precision < 4 || c.Index.Precision > 8 {
		problems = append(problems, fmt.Sprintf("index.precision %d outside 4..8", c.Index.Precision))
	}
	if c.NATS.URL != "" && !isValidSubject(c.NATS.Subject) {
		problems = append(problems, fmt.Sprintf("nats.subject %q is not a valid subject", c.NATS.Subject))
	}
	switch c.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		problems = append(problems, fmt.Sprintf("tls.min_version %q must be 1.2 or 1.3", c.TLS.MinVersion))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		problems = append(problems, "metrics.addr is required when metrics are enabled")
	}

	if len(problems) > 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "check settings")
	}
	return nil
}

// String returns a JSON representation with the key challenge masked
func (c *Config) String() string {
	masked := *c
	if masked.KeyServer.KeyChallenge != "" {
		masked.KeyServer.KeyChallenge = "***"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// isValidSubject accepts dot-separated tokens without wildcards or whitespace
func isValidSubject(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" || strings.ContainsAny(part, "*> \t\r\n") {
			return false
		}
	}
	return true
}
