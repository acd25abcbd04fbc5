// Package config loads runtime settings from defaults, an optional YAML file
// and PROPERTIQ_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/neomorfeo/propertiq/internal/adapter/otel"
)

// EnvPrefix is prepended to every environment variable, e.g. PROPERTIQ_HTTP_PORT.
const EnvPrefix = "PROPERTIQ"

// Config is the full runtime configuration.
type Config struct {
	HTTP            HTTP          `mapstructure:"http"`
	Database        Database      `mapstructure:"database"`
	Log             Log           `mapstructure:"log"`
	OTel            Telemetry     `mapstructure:"otel"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HTTP struct {
	Port int `mapstructure:"port"`
}

type Database struct {
	Path string `mapstructure:"path"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

type Telemetry struct {
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Environment    string  `mapstructure:"environment"`
	Exporter       string  `mapstructure:"exporter"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

var defaults = map[string]any{
	"http.port":            8080,
	"database.path":        "propertiq.db",
	"log.level":            "info",
	"log.format":           "text",
	"otel.service_name":    "propertiq",
	"otel.service_version": "0.1.0",
	"otel.environment":     "development",
	"otel.exporter":        "stdout",
	"otel.sample_ratio":    1.0,
	"shutdown_timeout":     "5s",
}

// Bind registers defaults and environment lookup on v. Call it before binding
// command-line flags so that flags take precedence.
func Bind(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads file when it is not empty, then decodes and validates the
// settings held by v.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.OTel.Exporter != "stdout" && c.OTel.Exporter != "otlp" {
		errs = append(errs, fmt.Errorf("otel.exporter must be stdout or otlp, got %q", c.OTel.Exporter))
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("otel.sample_ratio must be between 0 and 1, got %v", c.OTel.SampleRatio))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

// Telemetry converts the otel section for the OpenTelemetry adapter. OTLP
// runs over plain HTTP in development.
func (c Config) Telemetry() otel.Config {
	return otel.Config{
		ServiceName:    c.OTel.ServiceName,
		ServiceVersion: c.OTel.ServiceVersion,
		Environment:    c.OTel.Environment,
		Exporter:       c.OTel.Exporter,
		Insecure:       c.OTel.Environment == "development",
		SampleRatio:    c.OTel.SampleRatio,
	}
}

// Logger builds the structured logger described by the log section.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
