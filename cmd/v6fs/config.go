package main

import (
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const envVarPrefix = "V6FS"

// Config holds the settings shared by every command. Defaults come from the
// environment and can be overridden with global flags.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"warning"`
	LogJSON  bool   `envconfig:"LOG_JSON"  default:"false"`
	ReadOnly bool   `envconfig:"READ_ONLY" default:"false"`
}

func loadConfig(context *cli.Context) (*Config, error) {
	var config Config
	if err := envconfig.Process(envVarPrefix, &config); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if context.IsSet("log-level") {
		config.LogLevel = context.String("log-level")
	}
	if context.IsSet("json-logs") {
		config.LogJSON = context.Bool("json-logs")
	}
	if context.IsSet("read-only") {
		config.ReadOnly = context.Bool("read-only")
	}
	return &config, nil
}

// NewLogger creates a logger writing to `output` at the configured level.
func (config *Config) NewLogger(output io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(level)
	if config.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
