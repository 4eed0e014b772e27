package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/stanagfeed/config"
	"github.com/c360/stanagfeed/transport"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

// rootOptions holds the global flags and the state PersistentPreRunE derives from them.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Debug      bool

	logger *slog.Logger
	cfg    *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "STANAG 4778 secure feature ingestion",
		Long:          "Decrypts, verifies and decodes STANAG 4778 JSON envelopes into queryable feature stores.",
		Version:       fmt.Sprintf("%s (build %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initialize(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", getEnv("STANAGFEED_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: STANAGFEED_CONFIG)")
	flags.StringVar(&opts.LogLevel, "log-level", getEnv("STANAGFEED_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: STANAGFEED_LOG_LEVEL)")
	flags.StringVar(&opts.LogFormat, "log-format", getEnv("STANAGFEED_LOG_FORMAT", "json"),
		"Log format: json, text (env: STANAGFEED_LOG_FORMAT)")
	flags.BoolVar(&opts.Debug, "debug", getEnvBool("STANAGFEED_DEBUG", false),
		"Enable debug logging (env: STANAGFEED_DEBUG)")

	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newSealCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

func (o *rootOptions) initialize(cmd *cobra.Command) error {
	if o.Debug {
		o.LogLevel = "debug"
	}
	if !contains(validLevels, o.LogLevel) {
		return fmt.Errorf("invalid log level %q: must be one of %v", o.LogLevel, validLevels)
	}
	if !contains(validFormats, o.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %v", o.LogFormat, validFormats)
	}

	o.logger = setupLogger(o.LogLevel, o.LogFormat, cmd.ErrOrStderr())
	slog.SetDefault(o.logger)

	loader := config.NewLoader()
	if o.ConfigPath != "" {
		loader.AddLayer(o.ConfigPath)
	}
	loader.EnableValidation(true)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg

	o.logger.Debug("Configuration loaded", "config_path", o.ConfigPath, "command", cmd.Name())
	return nil
}

// fetcher creates the HTTP client used for key and PEM downloads.
func (o *rootOptions) fetcher() (*transport.Client, error) {
	client, err := transport.NewClient(o.cfg.Transport(), o.logger)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return client, nil
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
