// Package config loads chromagate configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// CHROMAGATE_* environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
)

// Config is the complete chromagate configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Connection ConnectionConfig `koanf:"connection"`
	Chroma     ChromaConfig     `koanf:"chroma"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// ServerConfig configures the command HTTP server.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
}

// ConnectionConfig is the session configured at startup when AutoConnect is set.
type ConnectionConfig struct {
	AutoConnect bool       `koanf:"auto_connect"`
	URL         string     `koanf:"url"`
	Tenant      string     `koanf:"tenant"`
	Database    string     `koanf:"database"`
	Auth        AuthConfig `koanf:"auth"`
}

// AuthConfig mirrors the auth payload accepted by the connect command.
type AuthConfig struct {
	Method    string `koanf:"method"`
	Username  string `koanf:"username"`
	Password  Secret `koanf:"password"`
	TokenType string `koanf:"token_type"`
	Token     Secret `koanf:"token"`
}

// ChromaConfig configures the Chroma REST client.
type ChromaConfig struct {
	RequestTimeout Duration `koanf:"request_timeout"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
	OTEL     bool   `koanf:"otel"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Connection: ConnectionConfig{
			URL:      "http://localhost:8000",
			Tenant:   "default_tenant",
			Database: "default_database",
		},
		Chroma: ChromaConfig{
			RequestTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sampling: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "chromagate",
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// AuthPayload converts the auth section into the payload the connect command
// negotiates. An empty method yields nil, which means no authentication.
func (a AuthConfig) AuthPayload() map[string]any {
	if a.Method == "" {
		return nil
	}
	payload := map[string]any{"authMethod": a.Method}
	if a.Username != "" {
		payload["username"] = a.Username
	}
	if a.Method == string(auth.MethodBasic) || a.Password.IsSet() {
		payload["password"] = a.Password.Value()
	}
	if a.TokenType != "" {
		payload["tokenType"] = a.TokenType
	}
	if a.Token.IsSet() {
		payload["token"] = a.Token.Value()
	}
	return payload
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.Server.RateLimit)
	}
	if c.Chroma.RequestTimeout.Duration() <= 0 {
		return errors.New("chroma request timeout must be positive")
	}

	if c.Connection.AutoConnect {
		if strings.TrimSpace(c.Connection.URL) == "" {
			return errors.New("connection url is required when auto_connect is enabled")
		}
		if _, err := auth.NegotiateOptional(c.Connection.Auth.AuthPayload()); err != nil {
			return fmt.Errorf("connection auth: %w", err)
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
			return fmt.Errorf("telemetry protocol must be 'grpc' or 'http', got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}
