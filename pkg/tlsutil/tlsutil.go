// Package tlsutil builds TLS client configuration for key-server and PEM requests.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/c360/stanagfeed/errors"
)

// ClientConfig describes how outbound HTTPS requests authenticate servers and,
// optionally, themselves. The system roots are always trusted; CAFiles adds to them.
type ClientConfig struct {
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"` // tests only
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"`
	CertFile           string   `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile            string   `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

func configError(err error, action string) error {
	return errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", action)
}

// LoadClientTLSConfig turns cfg into a tls.Config. Unreadable CA or client key
// material is a fatal error.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	roots, err := cfg.rootPool()
	if err != nil {
		return nil, err
	}
	out := &tls.Config{
		MinVersion:         ParseTLSVersion(cfg.MinVersion),
		RootCAs:            roots,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test key servers
	}

	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return out, nil
	}
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, configError(err, "client key pair load")
	}
	out.Certificates = append(out.Certificates, pair)
	return out, nil
}

func (cfg ClientConfig) rootPool() (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	for _, path := range cfg.CAFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, configError(err, "CA read of "+path)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, configError(fmt.Errorf("%s holds no PEM certificates", path), "CA parse")
		}
	}
	return pool, nil
}

// ParseTLSVersion maps "1.3" (or "tls1.3") to TLS 1.3. Anything else, including
// the empty string, yields TLS 1.2.
func ParseTLSVersion(version string) uint16 {
	if strings.TrimPrefix(strings.ToLower(version), "tls") == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
