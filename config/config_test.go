package config

import (
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://inventory.example.com/")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("STORAGE_KEY_PREFIX", "ops:")
	t.Setenv("REDIS_URI", "redis://cache:6379/2")
	t.Setenv("DB_NAME", "console")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("NAVIGATION_COALESCE_WINDOW", "250ms")
	t.Setenv("OBSERVABILITY_METRICS_TAGS", "env:test,team:inventory")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.API.BaseURL != "https://inventory.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Fatalf("unexpected API timeout: %v", cfg.API.Timeout)
	}
	if cfg.API.RevokeTimeout != 5*time.Second {
		t.Fatalf("unexpected revoke timeout: %v", cfg.API.RevokeTimeout)
	}
	if cfg.Storage.Backend != StorageRedis {
		t.Fatalf("expected redis backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.KeyPrefix != "ops:" {
		t.Fatalf("unexpected key prefix: %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Redis.URI != "redis://cache:6379/2" || cfg.Postgres.Name != "console" {
		t.Fatalf("unexpected database config: %#v %#v", cfg.Redis, cfg.Postgres)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected HTTP addr: %q", cfg.HTTP.Addr)
	}
	if cfg.Navigation.CoalesceWindow != 250*time.Millisecond {
		t.Fatalf("unexpected coalesce window: %v", cfg.Navigation.CoalesceWindow)
	}
	wantTags := map[string]string{"env": "test", "team": "inventory"}
	if !reflect.DeepEqual(cfg.Observability.Metrics.Tags, wantTags) {
		t.Fatalf("unexpected metric tags: %#v", cfg.Observability.Metrics.Tags)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log config: %#v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Storage.Backend != StorageFile {
		t.Fatalf("expected file backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Fatalf("expected 15s API timeout, got %v", cfg.API.Timeout)
	}
	if cfg.Navigation.CoalesceWindow != time.Second {
		t.Fatalf("expected 1s coalesce window, got %v", cfg.Navigation.CoalesceWindow)
	}
	if cfg.Observability.Metrics.IsEnabled() {
		t.Fatalf("metrics should be disabled by default")
	}
}

func TestStorageBackend_UnmarshalText(t *testing.T) {
	tests := []struct {
		input   string
		want    StorageBackend
		wantErr bool
	}{
		{input: "memory", want: StorageMemory},
		{input: " FILE ", want: StorageFile},
		{input: "redis", want: StorageRedis},
		{input: "Postgres", want: StoragePostgres},
		{input: "none", want: StorageNone},
		{input: "sqlite", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b StorageBackend
			err := b.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				if !strings.Contains(err.Error(), "valid options") {
					t.Fatalf("error should list valid options: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, b)
			}
		})
	}
}

func TestAppConfig_InvalidStorageBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "etcd")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatalf("expected parse error for unknown backend")
	}
}

func TestAPIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "http", baseURL: "http://localhost:5000"},
		{name: "https", baseURL: "https://inventory.example.com"},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "no scheme", baseURL: "localhost:5000", wantErr: true},
		{name: "ftp", baseURL: "ftp://inventory.example.com", wantErr: true},
		{name: "no host", baseURL: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := APIConfig{BaseURL: tt.baseURL}
			cfg.Sanitize()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
		Prefix:        ".ops.",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "ops" {
		t.Fatalf("expected prefix dots trimmed, got %q", cfg.Prefix)
	}
}

func TestLogConfig_Sanitize(t *testing.T) {
	tests := []struct {
		level, format string
		wantLevel     slog.Level
		wantFormat    string
	}{
		{level: "debug", format: "json", wantLevel: slog.LevelDebug, wantFormat: "json"},
		{level: "Warning", format: "TEXT", wantLevel: slog.LevelWarn, wantFormat: "text"},
		{level: "error", format: "", wantLevel: slog.LevelError, wantFormat: "json"},
		{level: "verbose", format: "xml", wantLevel: slog.LevelInfo, wantFormat: "json"},
	}

	for _, tt := range tests {
		cfg := LogConfig{Level: tt.level, Format: tt.format}
		cfg.Sanitize()
		if cfg.SlogLevel() != tt.wantLevel || cfg.Format != tt.wantFormat {
			t.Fatalf("Sanitize(%q, %q) = %v/%q", tt.level, tt.format, cfg.SlogLevel(), cfg.Format)
		}
	}
}
