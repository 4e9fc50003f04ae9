package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"CASTRPC_ENV", "CASTRPC_DEFAULT_ENVELOPE", "CASTRPC_MANIFEST_FILE",
	"COMMS_URL", "SERVICE_NAME", "CASTRPC_EVENT_SUBJECT", "CASTRPC_EVENT_ENCODING",
	"CASTRPC_METRICS_ADDR", "CASTRPC_CALL_RATE_LIMIT", "CASTRPC_CALL_BURST",
	"CASTRPC_CALL_TIMEOUT", "LOG_LEVEL",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range configEnvVars {
		env := env
		if old, ok := os.LookupEnv(env); ok {
			t.Cleanup(func() { os.Setenv(env, old) })
		}
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.Env != EnvProduction || cfg.IsDevelopment() {
		t.Errorf("config:config_test - Env = %q, want production", cfg.Env)
	}
	if cfg.DefaultEnvelope != "passthrough" {
		t.Errorf("config:config_test - DefaultEnvelope = %q, want passthrough", cfg.DefaultEnvelope)
	}
	if cfg.COMMSURL != "" {
		t.Errorf("config:config_test - COMMSURL = %q, want empty", cfg.COMMSURL)
	}
	if cfg.COMMSName != "castrpc" {
		t.Errorf("config:config_test - COMMSName = %q, want castrpc", cfg.COMMSName)
	}
	if cfg.EventSubject != "castrpc.events" || cfg.EventEncoding != "json" {
		t.Errorf("config:config_test - events = %q %q", cfg.EventSubject, cfg.EventEncoding)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("config:config_test - MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.CallRateLimit != 0 || cfg.CallBurst != 0 {
		t.Errorf("config:config_test - rate limit = %v/%d, want disabled", cfg.CallRateLimit, cfg.CallBurst)
	}
	if cfg.CallTimeout != 30*time.Second {
		t.Errorf("config:config_test - CallTimeout = %v, want 30s", cfg.CallTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config:config_test - defaults should validate: %v", err)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"CASTRPC_ENV":              "development",
		"CASTRPC_DEFAULT_ENVELOPE": "integrity",
		"CASTRPC_MANIFEST_FILE":    "/etc/castrpc.yaml",
		"COMMS_URL":                "nats://custom:4222",
		"SERVICE_NAME":             "test-server",
		"CASTRPC_EVENT_SUBJECT":    "custom.events",
		"CASTRPC_EVENT_ENCODING":   "cbor",
		"CASTRPC_METRICS_ADDR":     ":9100",
		"CASTRPC_CALL_RATE_LIMIT":  "2.5",
		"CASTRPC_CALL_BURST":       "5",
		"CASTRPC_CALL_TIMEOUT":     "3s",
		"LOG_LEVEL":                "debug",
	}
	for key, val := range overrides {
		t.Setenv(key, val)
	}

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if !cfg.IsDevelopment() || cfg.DefaultEnvelope != "integrity" || cfg.ManifestFile != "/etc/castrpc.yaml" {
		t.Errorf("config:config_test - unexpected core config: %+v", cfg)
	}
	if cfg.COMMSURL != "nats://custom:4222" || cfg.COMMSName != "test-server" {
		t.Errorf("config:config_test - unexpected COMMS config: %q %q", cfg.COMMSURL, cfg.COMMSName)
	}
	if cfg.EventSubject != "custom.events" || cfg.EventEncoding != "cbor" {
		t.Errorf("config:config_test - unexpected event config: %q %q", cfg.EventSubject, cfg.EventEncoding)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Errorf("config:config_test - MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.CallRateLimit != 2.5 || cfg.CallBurst != 5 || cfg.CallTimeout != 3*time.Second {
		t.Errorf("config:config_test - unexpected call config: %v %d %v", cfg.CallRateLimit, cfg.CallBurst, cfg.CallTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want debug", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config:config_test - overrides should validate: %v", err)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_NAME", "from-env")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "CASTRPC_ENV=development\nSERVICE_NAME=from-file\nCASTRPC_CALL_BURST=7\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("CASTRPC_ENV")
		os.Unsetenv("CASTRPC_CALL_BURST")
	})

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if cfg.Env != EnvDevelopment || cfg.CallBurst != 7 {
		t.Errorf("config:config_test - env file not applied: %+v", cfg)
	}
	if cfg.COMMSName != "from-env" {
		t.Errorf("config:config_test - env file overrode an existing variable: %q", cfg.COMMSName)
	}
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("CASTRPC_CALL_BURST", "lots")

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("config:config_test - expected error for non-numeric CASTRPC_CALL_BURST")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:             EnvProduction,
			DefaultEnvelope: "passthrough",
			EventEncoding:   "json",
			CallTimeout:     time.Second,
			LogLevel:        "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown env", mutate: func(c *Config) { c.Env = "staging" }, wantErr: "CASTRPC_ENV"},
		{name: "unknown envelope", mutate: func(c *Config) { c.DefaultEnvelope = "soap" }, wantErr: "CASTRPC_DEFAULT_ENVELOPE"},
		{name: "unknown encoding", mutate: func(c *Config) { c.EventEncoding = "xml" }, wantErr: "CASTRPC_EVENT_ENCODING"},
		{name: "negative rate", mutate: func(c *Config) { c.CallRateLimit = -1 }, wantErr: "CASTRPC_CALL_RATE_LIMIT"},
		{name: "negative burst", mutate: func(c *Config) { c.CallBurst = -1 }, wantErr: "CASTRPC_CALL_BURST"},
		{name: "zero timeout", mutate: func(c *Config) { c.CallTimeout = 0 }, wantErr: "CASTRPC_CALL_TIMEOUT"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("config:config_test - unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("config:config_test - error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("config:config_test - ParseLogLevel(%q) failed: %v", level, err)
		}
	}
	if l, _ := ParseLogLevel("warn"); l.String() != "WARN" {
		t.Errorf("config:config_test - warn parsed as %s", l)
	}
}
