package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/neomorfeo/propertiq/internal/config"
)

func load(t *testing.T, file string) (config.Config, error) {
	t.Helper()
	v := viper.New()
	config.Bind(v)
	return config.Load(v, file)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "propertiq.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "propertiq.db")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}

	tel := cfg.Telemetry()
	if tel.ServiceName != "propertiq" || tel.Exporter != "stdout" || !tel.Insecure {
		t.Errorf("Telemetry() = %+v", tel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROPERTIQ_HTTP_PORT", "9090")
	t.Setenv("PROPERTIQ_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("PROPERTIQ_OTEL_ENVIRONMENT", "production")
	t.Setenv("PROPERTIQ_OTEL_EXPORTER", "otlp")
	t.Setenv("PROPERTIQ_OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 9090 || cfg.Addr() != ":9090" {
		t.Errorf("HTTP.Port = %d, Addr() = %q", cfg.HTTP.Port, cfg.Addr())
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if tel := cfg.Telemetry(); tel.Exporter != "otlp" || tel.Insecure || tel.SampleRatio != 0.25 {
		t.Errorf("Telemetry() = %+v", tel)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propertiq.yaml")
	content := `
http:
  port: 7000
log:
  level: debug
  format: json
shutdown_timeout: 15s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("PROPERTIQ_HTTP_PORT", "7001")

	cfg, err := load(t, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 7001 {
		t.Errorf("environment should win over the file: HTTP.Port = %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := load(t, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PROPERTIQ_HTTP_PORT", "0")
	t.Setenv("PROPERTIQ_LOG_LEVEL", "chatty")
	t.Setenv("PROPERTIQ_OTEL_EXPORTER", "zipkin")
	t.Setenv("PROPERTIQ_OTEL_SAMPLE_RATIO", "1.5")

	_, err := load(t, "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"http.port", "log.level", "otel.exporter", "otel.sample_ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLogger(t *testing.T) {
	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("lot_id", "L1"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"lot_id":"L1"`) {
		t.Errorf("expected JSON output, got %s", out)
	}
}
