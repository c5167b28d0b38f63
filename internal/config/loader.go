package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CHROMAGATE_"

	maxConfigFileSize = 1024 * 1024
)

// envKeys lists the keys that environment variables may set. Keys contain
// underscores themselves, so CHROMAGATE_CONNECTION_AUTH_TOKEN_TYPE cannot be
// split mechanically.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.shutdown_timeout",
	"server.rate_limit",
	"connection.auto_connect",
	"connection.url",
	"connection.tenant",
	"connection.database",
	"connection.auth.method",
	"connection.auth.username",
	"connection.auth.password",
	"connection.auth.token_type",
	"connection.auth.token",
	"chroma.request_timeout",
	"logging.level",
	"logging.format",
	"logging.sampling",
	"logging.otel",
	"telemetry.enabled",
	"telemetry.service_name",
	"telemetry.endpoint",
	"telemetry.protocol",
	"telemetry.insecure",
	"telemetry.sample_rate",
	"metrics.enabled",
	"metrics.path",
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func envTransform() func(string) string {
	byName := make(map[string]string, len(envKeys))
	for _, key := range envKeys {
		byName[EnvName(key)] = key
	}
	return func(name string) string {
		return byName[name]
	}
}

// DefaultPath returns ~/.config/chromagate/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "chromagate", "config.yaml"), nil
}

// Load reads configuration from configPath (or DefaultPath when empty), then
// applies environment overrides. A missing file is not an error.
//
// The file must live under ~/.config/chromagate/ or /etc/chromagate/, be no
// larger than 1MB, and have mode 0600 or 0400.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform()), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns nil content when the file does not exist. Properties
// are checked on the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Paths that do not exist yet are checked as given.
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolved = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if h, err := filepath.EvalSymlinks(home); err == nil {
		home = h
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "chromagate"),
		"/etc/chromagate",
	}
	for _, dir := range allowedDirs {
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/chromagate/ or /etc/chromagate/")
}

func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
