package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/stanagfeed/errors"
)

const (
	maxConfigSize = 1 << 20
	maxEnvVarLen  = 10000

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STANAGFEED"
)

// dayDuration matches the "<n>d" shorthand accepted wherever a duration is.
var dayDuration = regexp.MustCompile(`^([0-9]+)d$`)

// Loader builds a Config from defaults, file layers and the environment.
type Loader struct {
	layers   []string
	validate bool
	getenv   func(string) string
}

// NewLoader returns a loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{getenv: os.Getenv}
}

// AddLayer appends a JSON or YAML file. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation makes Load run Config.Validate on the result.
func (l *Loader) EnableValidation(enable bool) {
	l.validate = enable
}

// LoadFile replaces the layers with path and loads.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load decodes each layer over the defaults, applies environment overrides and
// optionally validates. Every failure is fatal.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	for _, path := range l.layers {
		if err := decodeLayer(path, cfg); err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", "layer "+path)
		}
	}
	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if l.validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// decodeLayer decodes a file onto cfg. Keys absent from the file keep their
// current values. JSON is read by the YAML decoder as well.
func decodeLayer(path string, cfg *Config) error {
	data, err := readConfigFile(path)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
	}
	expandDays(&doc)
	if err := doc.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
	}
	return nil
}

// expandDays rewrites "<n>d" timeout values to hours so they decode as
// time.Duration.
func expandDays(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if val.Kind != yaml.ScalarNode || !strings.HasSuffix(key.Value, "timeout") {
				continue
			}
			if m := dayDuration.FindStringSubmatch(val.Value); m != nil {
				days, _ := strconv.Atoi(m[1])
				val.Value = strconv.Itoa(days*24) + "h"
				val.Tag = "!!str"
				val.Style = 0
			}
		}
	}
	for _, child := range n.Content {
		expandDays(child)
	}
}

func parseDuration(s string) (time.Duration, error) {
	if m := dayDuration.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

// applyEnv applies STANAGFEED_* variables. Unset or empty variables are ignored.
func (l *Loader) applyEnv(cfg *Config) error {
	overrides := []struct {
		name  string
		apply func(string) error
	}{
		{"KMS_URL", setString(&cfg.KeyServer.KmsURL)},
		{"KEY_CHALLENGE", setString(&cfg.KeyServer.KeyChallenge)},
		{"KEY_TIMEOUT", func(v string) (err error) {
			cfg.KeyServer.Timeout, err = parseDuration(v)
			return err
		}},
		{"PEM_URL", setString(&cfg.Signature.PEMURL)},
		{"NATS_URL", setString(&cfg.NATS.URL)},
		{"NATS_SUBJECT", setString(&cfg.NATS.Subject)},
		{"METRICS_ADDR", setString(&cfg.Metrics.Addr)},
	}

	for _, o := range overrides {
		key := EnvPrefix + "_" + o.name
		val := l.getenv(key)
		if err := checkEnvValue(key, val); err != nil {
			return errors.WrapFatal(err, "Loader", "applyEnv", "environment read")
		}
		if val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, key, err),
				"Loader", "applyEnv", "environment parse")
		}
	}
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty config path", errors.ErrMissingConfig)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s is not a JSON or YAML file", errors.ErrInvalidConfig, path)
	}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		return nil, err
	case !info.Mode().IsRegular():
		return nil, fmt.Errorf("%w: %s is not a regular file", errors.ErrInvalidConfig, path)
	case info.Size() > maxConfigSize:
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", errors.ErrInvalidConfig, path, info.Size(), maxConfigSize)
	}
	return os.ReadFile(path)
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%s is %d bytes, limit %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains a NUL byte", key)
	}
	return nil
}
