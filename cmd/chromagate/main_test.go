package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/chromagate/internal/chroma"
	"github.com/fyrsmithlabs/chromagate/internal/config"
	"github.com/fyrsmithlabs/chromagate/internal/gateway"
	"github.com/fyrsmithlabs/chromagate/internal/logging"
	"github.com/fyrsmithlabs/chromagate/internal/session"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "invoke", "version"}, names)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestInvoke_PrintsResult(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"id":"c1","name":"docs"}]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "invoke", "fetch_collections", "--server", srv.URL+"/", "--args", `{"x":1}`)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/commands/fetch_collections", gotPath)
	assert.Equal(t, `{"x":1}`, gotBody)
	assert.Contains(t, out, `"name": "docs"`)
}

func TestInvoke_FetchEmbeddingsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[
			{"id":"a","embedding":[0.123,-1.5,3],"document":"hello","metadata":{"k":"v"}},
			{"id":"b","embedding":[],"document":"","metadata":{}}
		]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "invoke", "fetch_embeddings", "--server", srv.URL, "--args", `{"collection_name":"docs"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "[0.12, -1.50, 3.00]")
	assert.Contains(t, out, `{"k":"v"}`)
	assert.Contains(t, out, "[]")

	out, err = execute(t, "invoke", "fetch_embeddings", "--server", srv.URL, "--precision", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "[0, -2, 3]")
}

func TestInvoke_ErrorCarriesKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": session.ErrNoSession.Error(), "kind": "no_session"})
	}))
	defer srv.Close()

	_, err := execute(t, "invoke", "health_check", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), session.ErrNoSession.Error())
	assert.Contains(t, err.Error(), "[no_session]")
}

func TestInvoke_RejectsInvalidArgs(t *testing.T) {
	_, err := execute(t, "invoke", "health_check", "--server", "http://127.0.0.1:1", "--args", "{not json")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = config.Duration(2 * time.Second)
	cfg.Metrics.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestAutoConnect(t *testing.T) {
	chromaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/heartbeat" {
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"nanosecond heartbeat": 42}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer chromaSrv.Close()

	t.Run("configures session", func(t *testing.T) {
		tl := logging.NewTestLogger()
		gw := gateway.New(session.New(chroma.NewHTTPDialer(time.Second)))

		autoConnect(context.Background(), gw, config.ConnectionConfig{
			AutoConnect: true,
			URL:         chromaSrv.URL,
			Auth: config.AuthConfig{
				Method:    "token_auth",
				TokenType: "bearer",
				Token:     config.Secret("sk-test"),
			},
		}, tl.Logger)

		info, ok := gw.Store().Current()
		require.True(t, ok)
		assert.Equal(t, chromaSrv.URL, info.URL)
		tl.AssertLogged(t, zapcore.InfoLevel, "auto-connect session configured")
		tl.AssertField(t, "auto-connect session configured", "heartbeat", int64(42))
		tl.AssertField(t, "auto-connect session configured", "auth_method", "token_auth")
		tl.AssertField(t, "auto-connect session configured", "tenant", chroma.DefaultTenant)
		tl.AssertNotContains(t, "sk-test")
	})

	t.Run("bad auth leaves no session", func(t *testing.T) {
		tl := logging.NewTestLogger()
		gw := gateway.New(session.New(chroma.NewHTTPDialer(time.Second)))

		autoConnect(context.Background(), gw, config.ConnectionConfig{
			URL:  chromaSrv.URL,
			Auth: config.AuthConfig{Method: "token_auth", TokenType: "bearer"},
		}, tl.Logger)

		_, ok := gw.Store().Current()
		assert.False(t, ok)
		tl.AssertLogged(t, zapcore.ErrorLevel, "auto-connect failed")
		tl.AssertField(t, "auto-connect failed", "kind", "negotiation")
	})
}
