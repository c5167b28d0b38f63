package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid server port"},
		{name: "no shutdown timeout", mutate: func(c *Config) { c.Server.ShutdownTimeout = 0 }, wantErr: "shutdown timeout"},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimit = -1 }, wantErr: "rate limit"},
		{name: "no request timeout", mutate: func(c *Config) { c.Chroma.RequestTimeout = 0 }, wantErr: "request timeout"},
		{
			name: "auto connect without url",
			mutate: func(c *Config) {
				c.Connection.AutoConnect = true
				c.Connection.URL = " "
			},
			wantErr: "connection url",
		},
		{
			name: "auto connect with basic auth",
			mutate: func(c *Config) {
				c.Connection.AutoConnect = true
				c.Connection.Auth = AuthConfig{Method: "basic_auth", Username: "admin", Password: "pw"}
			},
		},
		{
			name: "auto connect with unknown method",
			mutate: func(c *Config) {
				c.Connection.AutoConnect = true
				c.Connection.Auth = AuthConfig{Method: "kerberos"}
			},
			wantErr: "connection auth",
		},
		{
			name: "telemetry sample rate",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRate = 1.5
			},
			wantErr: "sample rate",
		},
		{name: "metrics path", mutate: func(c *Config) { c.Metrics.Path = "metrics" }, wantErr: "metrics path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthConfig_AuthPayload(t *testing.T) {
	assert.Nil(t, AuthConfig{}.AuthPayload())

	assert.Equal(t, map[string]any{"authMethod": "no_auth"}, AuthConfig{Method: "no_auth"}.AuthPayload())

	assert.Equal(t, map[string]any{
		"authMethod": "basic_auth",
		"username":   "admin",
		"password":   "",
	}, AuthConfig{Method: "basic_auth", Username: "admin"}.AuthPayload())
}

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())

	raw, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(raw))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("later")))

	text, err := Duration(2 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2s", string(text))
}
