package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
	"github.com/fyrsmithlabs/chromagate/internal/chroma"
	"github.com/fyrsmithlabs/chromagate/internal/chroma/chromatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func version(ctx context.Context, s *Store) (string, error) {
	return WithSession(ctx, s, func(ctx context.Context, sess *Session) (string, error) {
		return sess.Client.Version(ctx)
	})
}

func mustConfigure(t *testing.T, store *Store, target chroma.Target) {
	t.Helper()
	_, err := store.Configure(context.Background(), target)
	require.NoError(t, err)
}

func TestWithSession_NoSession(t *testing.T) {
	store := New(&chromatest.Dialer{})

	called := false
	got, err := WithSession(context.Background(), store, func(ctx context.Context, sess *Session) (int, error) {
		called = true
		return 1, nil
	})

	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, got)
	assert.False(t, called)

	_, ok := store.Current()
	assert.False(t, ok)
}

func TestConfigure(t *testing.T) {
	dialer := &chromatest.Dialer{}
	store := New(dialer)
	ctx := context.Background()

	installed, err := store.Configure(ctx, chroma.Target{
		URL:      "http://localhost:8000",
		Strategy: auth.TokenAuth{Header: auth.HeaderChromaToken, Token: "secret"},
	})
	require.NoError(t, err)

	want := Info{
		URL:        "http://localhost:8000",
		AuthMethod: auth.MethodToken,
		Tenant:     chroma.DefaultTenant,
		Database:   chroma.DefaultDatabase,
	}
	assert.Equal(t, want, installed)

	info, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, want, info)

	v, err := version(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)

	targets := dialer.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, chroma.DefaultTenant, targets[0].Tenant)
}

func TestConfigure_DialFailureKeepsPrevious(t *testing.T) {
	dialer := &chromatest.Dialer{}
	store := New(dialer)
	ctx := context.Background()

	mustConfigure(t, store, chroma.Target{URL: "http://first:8000", Strategy: auth.None{}})

	dialer.Err = errors.New("dial refused")
	_, err := store.Configure(ctx, chroma.Target{URL: "http://second:8000", Strategy: auth.None{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial refused")
	assert.Contains(t, err.Error(), "http://second:8000")

	info, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "http://first:8000", info.URL)
}

func TestConfigure_Replaces(t *testing.T) {
	clients := map[string]*chromatest.Client{}
	dialer := &chromatest.Dialer{
		NewClient: func(target chroma.Target) *chromatest.Client {
			c := chromatest.NewClient(target)
			c.VersionValue = target.URL
			clients[target.URL] = c
			return c
		},
	}
	store := New(dialer)
	ctx := context.Background()

	mustConfigure(t, store, chroma.Target{URL: "http://a:8000", Strategy: auth.None{}})
	mustConfigure(t, store, chroma.Target{URL: "http://b:8000", Strategy: auth.None{}})

	for range 3 {
		v, err := version(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, "http://b:8000", v)
	}
	assert.Empty(t, clients["http://a:8000"].Calls())
	assert.Len(t, clients["http://b:8000"].Calls(), 3)
}

func TestConfigure_InFlightCallFinishesOnOldClient(t *testing.T) {
	release := make(chan struct{})
	dialer := &chromatest.Dialer{
		NewClient: func(target chroma.Target) *chromatest.Client {
			c := chromatest.NewClient(target)
			c.VersionValue = target.URL
			if target.URL == "http://old:8000" {
				c.Block = release
			}
			return c
		},
	}
	store := New(dialer)
	ctx := context.Background()
	mustConfigure(t, store, chroma.Target{URL: "http://old:8000", Strategy: auth.None{}})

	var (
		wg       sync.WaitGroup
		inFlight string
		inErr    error
	)
	var oldClient *chromatest.Client
	_, _ = WithSession(ctx, store, func(ctx context.Context, sess *Session) (struct{}, error) {
		oldClient = sess.Client.(*chromatest.Client)
		return struct{}{}, nil
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		inFlight, inErr = version(ctx, store)
	}()

	require.Eventually(t, func() bool {
		return slices.Contains(oldClient.Calls(), "Version")
	}, time.Second, 5*time.Millisecond)

	configured := make(chan error, 1)
	go func() {
		_, err := store.Configure(ctx, chroma.Target{URL: "http://new:8000", Strategy: auth.None{}})
		configured <- err
	}()

	// The swap waits for the lock held by the in-flight call.
	select {
	case <-configured:
		t.Fatal("configure completed while a call held the session")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	require.NoError(t, <-configured)

	require.NoError(t, inErr)
	assert.Equal(t, "http://old:8000", inFlight)

	v, err := version(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "http://new:8000", v)
}

func TestWithSession_Serializes(t *testing.T) {
	store := New(&chromatest.Dialer{})
	ctx := context.Background()
	mustConfigure(t, store, chroma.Target{URL: "http://localhost:8000", Strategy: auth.None{}})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = WithSession(ctx, store, func(ctx context.Context, sess *Session) (bool, error) {
				mu.Lock()
				active++
				if active > 1 {
					overlap = true
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return true, nil
			})
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
}
