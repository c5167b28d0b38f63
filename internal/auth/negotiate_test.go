package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate_Valid(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Strategy
	}{
		{
			name:    "no auth",
			payload: map[string]any{"authMethod": "no_auth"},
			want:    None{},
		},
		{
			name:    "no auth ignores extra fields",
			payload: map[string]any{"authMethod": "no_auth", "username": 42},
			want:    None{},
		},
		{
			name:    "basic auth",
			payload: map[string]any{"authMethod": "basic_auth", "username": "admin", "password": "s3cret"},
			want:    BasicAuth{Username: "admin", Password: "s3cret"},
		},
		{
			name:    "basic auth with empty password",
			payload: map[string]any{"authMethod": "basic_auth", "username": "admin", "password": ""},
			want:    BasicAuth{Username: "admin", Password: ""},
		},
		{
			name:    "bearer token",
			payload: map[string]any{"authMethod": "token_auth", "tokenType": "bearer", "token": "tok"},
			want:    TokenAuth{Header: HeaderAuthorization, Token: "tok"},
		},
		{
			name:    "x-chroma-token",
			payload: map[string]any{"authMethod": "token_auth", "tokenType": "x_chroma_token", "token": "tok"},
			want:    TokenAuth{Header: HeaderChromaToken, Token: "tok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNegotiate_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		payload   map[string]any
		wantField string
	}{
		{name: "nil payload", payload: nil},
		{name: "empty payload", payload: map[string]any{}, wantField: "authMethod"},
		{name: "unknown method", payload: map[string]any{"authMethod": "oauth"}, wantField: "authMethod"},
		{name: "method not a string", payload: map[string]any{"authMethod": 1}, wantField: "authMethod"},
		{name: "method null", payload: map[string]any{"authMethod": nil}, wantField: "authMethod"},
		{
			name:      "basic missing username",
			payload:   map[string]any{"authMethod": "basic_auth", "password": "p"},
			wantField: "username",
		},
		{
			name:      "basic missing password",
			payload:   map[string]any{"authMethod": "basic_auth", "username": "u"},
			wantField: "password",
		},
		{
			name:      "basic password not a string",
			payload:   map[string]any{"authMethod": "basic_auth", "username": "u", "password": 1234},
			wantField: "password",
		},
		{
			name:      "token missing token type",
			payload:   map[string]any{"authMethod": "token_auth", "token": "t"},
			wantField: "tokenType",
		},
		{
			name:      "token unknown token type",
			payload:   map[string]any{"authMethod": "token_auth", "tokenType": "api_key", "token": "t"},
			wantField: "tokenType",
		},
		{
			name:      "token missing token",
			payload:   map[string]any{"authMethod": "token_auth", "tokenType": "bearer"},
			wantField: "token",
		},
		{
			name:      "token is a number",
			payload:   map[string]any{"authMethod": "token_auth", "tokenType": "bearer", "token": 7.5},
			wantField: "token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.payload)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrNegotiation))

			var negErr *NegotiationError
			require.True(t, errors.As(err, &negErr))
			assert.Equal(t, tt.wantField, negErr.Field)
		})
	}
}

func TestNegotiateOptional(t *testing.T) {
	t.Run("nil payload means no auth", func(t *testing.T) {
		got, err := NegotiateOptional(nil)
		require.NoError(t, err)
		assert.Equal(t, None{}, got)
	})

	t.Run("empty payload still fails", func(t *testing.T) {
		_, err := NegotiateOptional(map[string]any{})
		assert.ErrorIs(t, err, ErrNegotiation)
	})

	t.Run("non-nil payload is negotiated", func(t *testing.T) {
		got, err := NegotiateOptional(map[string]any{"authMethod": "basic_auth", "username": "u", "password": "p"})
		require.NoError(t, err)
		assert.Equal(t, MethodBasic, got.Method())
	})

	t.Run("typed nil map means no auth", func(t *testing.T) {
		var payload map[string]any
		got, err := NegotiateOptional(payload)
		require.NoError(t, err)
		assert.Equal(t, None{}, got)
	})

	for _, payload := range []any{"token_auth", []any{}, 42.0, true} {
		t.Run(fmt.Sprintf("non-object %T fails", payload), func(t *testing.T) {
			_, err := NegotiateOptional(payload)
			require.ErrorIs(t, err, ErrNegotiation)
			var negErr *NegotiationError
			require.ErrorAs(t, err, &negErr)
			assert.Empty(t, negErr.Field)
			assert.Contains(t, negErr.Reason, "payload must be an object")
		})
	}
}

func TestStrategy_Apply(t *testing.T) {
	newReq := func() *http.Request {
		return httptest.NewRequest(http.MethodGet, "http://chroma.local/api/v2/heartbeat", nil)
	}

	t.Run("none sets nothing", func(t *testing.T) {
		req := newReq()
		None{}.Apply(req)
		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Empty(t, req.Header.Get("X-Chroma-Token"))
	})

	t.Run("basic", func(t *testing.T) {
		req := newReq()
		BasicAuth{Username: "admin", Password: "pw"}.Apply(req)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:pw"))
		assert.Equal(t, want, req.Header.Get("Authorization"))
	})

	t.Run("bearer", func(t *testing.T) {
		req := newReq()
		TokenAuth{Header: HeaderAuthorization, Token: "abc"}.Apply(req)
		assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	})

	t.Run("x-chroma-token", func(t *testing.T) {
		req := newReq()
		TokenAuth{Header: HeaderChromaToken, Token: "abc"}.Apply(req)
		assert.Equal(t, "abc", req.Header.Get("X-Chroma-Token"))
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestStrategy_StringHidesSecrets(t *testing.T) {
	basic := BasicAuth{Username: "admin", Password: "hunter2"}
	assert.NotContains(t, basic.String(), "hunter2")
	assert.Contains(t, basic.String(), "admin")

	token := TokenAuth{Header: HeaderChromaToken, Token: "sk-live-123"}
	assert.NotContains(t, token.String(), "sk-live-123")
	assert.Contains(t, token.String(), "X-Chroma-Token")
}
