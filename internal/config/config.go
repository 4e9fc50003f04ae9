// Package config provides castrpc configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/castrpc/pkg/commsutil"
	"github.com/morezero/castrpc/pkg/envelope"
)

const logPrefix = "config:LoadConfig"

// Environments accepted by CASTRPC_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds castrpc configuration.
type Config struct {
	// Env is exposed to handlers through the call context. Development also
	// turns on error stack capture.
	Env string `envconfig:"CASTRPC_ENV" default:"production"`

	DefaultEnvelope string `envconfig:"CASTRPC_DEFAULT_ENVELOPE" default:"passthrough"`
	ManifestFile    string `envconfig:"CASTRPC_MANIFEST_FILE"`

	// COMMS: events are published only when COMMSURL is set.
	COMMSURL      string `envconfig:"COMMS_URL"`
	COMMSName     string `envconfig:"SERVICE_NAME" default:"castrpc"`
	EventSubject  string `envconfig:"CASTRPC_EVENT_SUBJECT" default:"castrpc.events"`
	EventEncoding string `envconfig:"CASTRPC_EVENT_ENCODING" default:"json"`

	// Metrics endpoint served by `castrpc serve-metrics`
	MetricsAddr string `envconfig:"CASTRPC_METRICS_ADDR" default:"127.0.0.1:9464"`

	// Registry-wide call throttling; zero disables it
	CallRateLimit float64       `envconfig:"CASTRPC_CALL_RATE_LIMIT" default:"0"`
	CallBurst     int           `envconfig:"CASTRPC_CALL_BURST" default:"0"`
	CallTimeout   time.Duration `envconfig:"CASTRPC_CALL_TIMEOUT" default:"30s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables. Each env file that
// exists is loaded first without overriding variables already set; with no
// files given, ./.env is tried.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s - load %s: %w", logPrefix, f, err)
			}
			continue
		}
		slog.Debug(fmt.Sprintf("%s - Loaded env file %s", logPrefix, f))
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &c, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("%s - CASTRPC_ENV must be one of development, production, test (got %q)", logPrefix, c.Env)
	}
	if err := envelope.Validate(c.DefaultEnvelope); err != nil {
		return fmt.Errorf("%s - CASTRPC_DEFAULT_ENVELOPE: %w", logPrefix, err)
	}
	if _, err := commsutil.CodecFor(c.EventEncoding); err != nil {
		return fmt.Errorf("%s - CASTRPC_EVENT_ENCODING: %w", logPrefix, err)
	}
	if c.CallRateLimit < 0 {
		return fmt.Errorf("%s - CASTRPC_CALL_RATE_LIMIT must not be negative", logPrefix)
	}
	if c.CallBurst < 0 {
		return fmt.Errorf("%s - CASTRPC_CALL_BURST must not be negative", logPrefix)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s - CASTRPC_CALL_TIMEOUT must be positive", logPrefix)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsDevelopment reports whether CASTRPC_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s - LOG_LEVEL: %w", logPrefix, err)
	}
	return l, nil
}
