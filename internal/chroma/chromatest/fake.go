// Package chromatest provides in-memory fakes of the chroma contract for tests.
package chromatest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/chromagate/internal/chroma"
)

// Dialer records every Dial and returns the client produced by NewClient.
type Dialer struct {
	mu      sync.Mutex
	targets []chroma.Target

	// Err, when set, fails every Dial.
	Err error

	// NewClient builds the client for a target. Defaults to NewClient.
	NewClient func(target chroma.Target) *Client
}

// Dial implements chroma.Dialer.
func (d *Dialer) Dial(ctx context.Context, target chroma.Target) (chroma.Client, error) {
	d.mu.Lock()
	d.targets = append(d.targets, target)
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	if d.NewClient != nil {
		return d.NewClient(target), nil
	}
	return NewClient(target), nil
}

// Targets returns the dialed targets in call order.
func (d *Dialer) Targets() []chroma.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]chroma.Target(nil), d.targets...)
}

// Client is a scriptable chroma.Client.
type Client struct {
	Target chroma.Target

	HeartbeatValue int64
	VersionValue   string
	ResetValue     bool

	// Tenants holds the tenant names that exist; Databases holds
	// "tenant/database" keys.
	Tenants   map[string]bool
	Databases map[string]bool

	// Errors keyed by method name ("Heartbeat", "TenantExists", ...).
	Errors map[string]error

	// Block, when non-nil, is received from before each call returns.
	Block chan struct{}

	mu          sync.Mutex
	collections []*Collection
	calls       []string
}

// NewClient returns a client that answers like a fresh server.
func NewClient(target chroma.Target) *Client {
	target = target.WithDefaults()
	return &Client{
		Target:         target,
		HeartbeatValue: 1,
		VersionValue:   "1.0.0",
		ResetValue:     true,
		Tenants:        map[string]bool{target.Tenant: true},
		Databases:      map[string]bool{target.Tenant + "/" + target.Database: true},
		Errors:         map[string]error{},
	}
}

// AddCollection seeds a collection and returns it.
func (c *Client) AddCollection(col *Collection) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections = append(c.collections, col)
	return col
}

// Calls returns the method names invoked so far.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *Client) enter(ctx context.Context, method string) error {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	err := c.Errors[method]
	block := c.Block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) Heartbeat(ctx context.Context) (int64, error) {
	if err := c.enter(ctx, "Heartbeat"); err != nil {
		return 0, err
	}
	return c.HeartbeatValue, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	if err := c.enter(ctx, "Version"); err != nil {
		return "", err
	}
	return c.VersionValue, nil
}

func (c *Client) Reset(ctx context.Context) (bool, error) {
	if err := c.enter(ctx, "Reset"); err != nil {
		return false, err
	}
	c.mu.Lock()
	c.collections = nil
	c.mu.Unlock()
	return c.ResetValue, nil
}

func (c *Client) TenantExists(ctx context.Context, tenant string) (bool, error) {
	if err := c.enter(ctx, "TenantExists"); err != nil {
		return false, err
	}
	return c.Tenants[tenant], nil
}

func (c *Client) DatabaseExists(ctx context.Context, tenant, database string) (bool, error) {
	if err := c.enter(ctx, "DatabaseExists"); err != nil {
		return false, err
	}
	return c.Databases[tenant+"/"+database], nil
}

func (c *Client) ListCollections(ctx context.Context) ([]chroma.CollectionInfo, error) {
	if err := c.enter(ctx, "ListCollections"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	infos := make([]chroma.CollectionInfo, 0, len(c.collections))
	for _, col := range c.collections {
		infos = append(infos, chroma.CollectionInfo{ID: col.IDValue, Name: col.NameValue})
	}
	return infos, nil
}

func (c *Client) GetCollection(ctx context.Context, name string) (chroma.Collection, error) {
	if err := c.enter(ctx, "GetCollection"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range c.collections {
		if col.NameValue == name {
			return col, nil
		}
	}
	return nil, &chroma.APIError{Status: 404, Message: fmt.Sprintf("NotFoundError: Collection [%s] does not exists", name)}
}

func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]any) (chroma.Collection, error) {
	if err := c.enter(ctx, "CreateCollection"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range c.collections {
		if col.NameValue == name {
			return nil, &chroma.APIError{Status: 409, Message: fmt.Sprintf("UniqueConstraintError: Collection %s already exists", name)}
		}
	}
	col := &Collection{
		IDValue:       fmt.Sprintf("col-%d", len(c.collections)+1),
		NameValue:     name,
		MetadataValue: metadata,
	}
	c.collections = append(c.collections, col)
	return col, nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.enter(ctx, "DeleteCollection"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, col := range c.collections {
		if col.NameValue == name {
			c.collections = append(c.collections[:i], c.collections[i+1:]...)
			return nil
		}
	}
	return &chroma.APIError{Status: 404, Message: fmt.Sprintf("NotFoundError: Collection [%s] does not exists", name)}
}

// Collection is a scriptable chroma.Collection. Get returns Result as-is,
// so callers can hand the normalizer misaligned or null-filled columns.
type Collection struct {
	IDValue            string
	NameValue          string
	MetadataValue      map[string]any
	ConfigurationValue map[string]any

	Result *chroma.GetResult
	Err    error

	mu   sync.Mutex
	gets []chroma.GetOptions
}

func (c *Collection) ID() string                    { return c.IDValue }
func (c *Collection) Name() string                  { return c.NameValue }
func (c *Collection) Metadata() map[string]any      { return c.MetadataValue }
func (c *Collection) Configuration() map[string]any { return c.ConfigurationValue }

func (c *Collection) Get(ctx context.Context, opts chroma.GetOptions) (*chroma.GetResult, error) {
	c.mu.Lock()
	c.gets = append(c.gets, opts)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if c.Result == nil {
		return &chroma.GetResult{}, nil
	}
	return c.Result, nil
}

// Gets returns the options passed to Get in call order.
func (c *Collection) Gets() []chroma.GetOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chroma.GetOptions(nil), c.gets...)
}
