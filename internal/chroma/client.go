package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	chromav2 "github.com/amikos-tech/chroma-go/pkg/api/v2"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
	"github.com/fyrsmithlabs/chromagate/internal/logging"
)

const (
	apiPrefix = "/api/v2"

	// DefaultRequestTimeout bounds a single REST call.
	DefaultRequestTimeout = 30 * time.Second

	maxErrorBody = 64 * 1024
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// HTTPDialer builds clients for the Chroma v2 API.
//
// Server, tenant and collection calls go through the chroma-go v2 client.
// The heartbeat and row reads use the REST endpoints directly: chroma-go
// drops the heartbeat timestamp and folds null cells into zero values.
type HTTPDialer struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// DialerOption configures an HTTPDialer.
type DialerOption func(*HTTPDialer)

// WithLogger logs every Chroma request at trace level.
func WithLogger(logger *logging.Logger) DialerOption {
	return func(d *HTTPDialer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHTTPClient sends requests through hc. Its Timeout replaces the dialer's.
func WithHTTPClient(hc *http.Client) DialerOption {
	return func(d *HTTPDialer) {
		if hc != nil {
			d.httpClient = hc
		}
	}
}

// NewHTTPDialer creates a dialer whose clients time out after timeout.
// A zero timeout uses DefaultRequestTimeout.
func NewHTTPDialer(timeout time.Duration, opts ...DialerOption) *HTTPDialer {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	d := &HTTPDialer{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	base := d.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *d.httpClient
	hc.Transport = &recordingTransport{base: base, logger: d.logger}
	d.httpClient = &hc
	return d
}

// Dial validates target and returns a client for it. No request is sent.
func (d *HTTPDialer) Dial(ctx context.Context, target Target) (Client, error) {
	if target.Strategy == nil {
		return nil, ErrMissingStrategy
	}

	base, err := parseBaseURL(target.URL)
	if err != nil {
		return nil, err
	}
	target = target.WithDefaults()

	opts := []chromav2.ClientOption{
		chromav2.WithBaseURL(base + apiPrefix),
		chromav2.WithDatabaseAndTenant(target.Database, target.Tenant),
		chromav2.WithHTTPClient(d.httpClient),
	}
	opts = append(opts, credentialOptions(target.Strategy)...)

	api, err := chromav2.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating chroma client: %w", err)
	}

	return &httpClient{
		api:      api,
		http:     d.httpClient,
		base:     base + apiPrefix,
		strategy: target.Strategy,
		tenant:   target.Tenant,
		database: target.Database,
	}, nil
}

func parseBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: host is empty", ErrInvalidURL)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

type httpClient struct {
	api      chromav2.Client
	http     *http.Client
	base     string
	strategy auth.Strategy
	tenant   string
	database string
}

func (c *httpClient) Heartbeat(ctx context.Context) (int64, error) {
	var resp struct {
		Nanoseconds int64 `json:"nanosecond heartbeat"`
	}
	if err := c.do(ctx, http.MethodGet, "/heartbeat", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Nanoseconds, nil
}

func (c *httpClient) Version(ctx context.Context) (string, error) {
	var version string
	err := c.call(ctx, func(ctx context.Context) error {
		v, err := c.api.GetVersion(ctx)
		version = v
		return err
	})
	if err != nil {
		return "", err
	}
	return version, nil
}

func (c *httpClient) Reset(ctx context.Context) (bool, error) {
	if err := c.call(ctx, c.api.Reset); err != nil {
		return false, err
	}
	return true, nil
}

func (c *httpClient) TenantExists(ctx context.Context, tenant string) (bool, error) {
	return exists(c.call(ctx, func(ctx context.Context) error {
		_, err := c.api.GetTenant(ctx, chromav2.NewTenant(tenant))
		return err
	}))
}

func (c *httpClient) DatabaseExists(ctx context.Context, tenant, database string) (bool, error) {
	return exists(c.call(ctx, func(ctx context.Context) error {
		_, err := c.api.GetDatabase(ctx, chromav2.NewDatabase(database, chromav2.NewTenant(tenant)))
		return err
	}))
}

// exists turns a lookup error into an answer. Only a 404 means "absent".
func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *httpClient) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	var cols []chromav2.Collection
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		cols, err = c.api.ListCollections(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	infos := make([]CollectionInfo, len(cols))
	for i, col := range cols {
		infos[i] = CollectionInfo{ID: col.ID(), Name: col.Name()}
	}
	return infos, nil
}

func (c *httpClient) GetCollection(ctx context.Context, name string) (Collection, error) {
	rec := &responseRecord{keepBody: true}
	var col chromav2.Collection
	err := c.callRecorded(ctx, rec, func(ctx context.Context) error {
		var err error
		col, err = c.api.GetCollection(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newHTTPCollection(c, col, rec.body), nil
}

func (c *httpClient) CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	opts := []chromav2.CreateCollectionOption{
		chromav2.WithEmbeddingFunctionCreate(noEmbeddings{}),
	}
	if len(metadata) > 0 {
		opts = append(opts, chromav2.WithCollectionMetadataCreate(chromav2.NewMetadataFromMap(metadata)))
	}

	rec := &responseRecord{keepBody: true}
	var col chromav2.Collection
	err := c.callRecorded(ctx, rec, func(ctx context.Context) error {
		var err error
		col, err = c.api.CreateCollection(ctx, name, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newHTTPCollection(c, col, rec.body), nil
}

func (c *httpClient) DeleteCollection(ctx context.Context, name string) error {
	return c.call(ctx, func(ctx context.Context) error {
		return c.api.DeleteCollection(ctx, name)
	})
}

func (c *httpClient) collectionsPath() string {
	return "/tenants/" + url.PathEscape(c.tenant) + "/databases/" + url.PathEscape(c.database) + "/collections"
}

func (c *httpClient) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.callRecorded(ctx, &responseRecord{}, fn)
}

// callRecorded runs a chroma-go call with rec attached to its requests. An
// error status recorded on the wire replaces the library's error, so the
// server's message reaches the caller as sent.
func (c *httpClient) callRecorded(ctx context.Context, rec *responseRecord, fn func(ctx context.Context) error) error {
	err := fn(withResponseRecord(ctx, rec))
	if err == nil {
		return nil
	}
	if rec.apiErr != nil {
		return rec.apiErr
	}
	return err
}

// do sends one REST request. body is JSON-encoded when non-nil; out is
// decoded from the response when non-nil.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.strategy.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// newAPIError extracts the server's message. Chroma answers errors with
// {"error": "<Kind>", "message": "<detail>"}; anything else is kept verbatim.
func newAPIError(status int, raw []byte) *APIError {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "" && body.Message != "":
			msg = body.Error + ": " + body.Message
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
