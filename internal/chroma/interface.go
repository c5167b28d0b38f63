// Package chroma defines the contract chromagate consumes from a Chroma server
// and provides an HTTP implementation of it.
package chroma

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
)

// Defaults used when a connection target leaves tenant or database empty.
const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
)

// Sentinel errors for client construction.
var (
	// ErrInvalidURL is returned when a target URL cannot address a Chroma server.
	ErrInvalidURL = errors.New("invalid chroma url")

	// ErrMissingStrategy is returned when a target carries no auth strategy.
	ErrMissingStrategy = errors.New("auth strategy is required")
)

// Target describes where and how to connect.
type Target struct {
	URL      string
	Strategy auth.Strategy
	Tenant   string
	Database string
}

// WithDefaults fills empty tenant and database with the Chroma defaults.
func (t Target) WithDefaults() Target {
	if t.Tenant == "" {
		t.Tenant = DefaultTenant
	}
	if t.Database == "" {
		t.Database = DefaultDatabase
	}
	return t
}

// Include names a column requested from Collection.Get.
type Include string

const (
	IncludeEmbeddings Include = "embeddings"
	IncludeDocuments  Include = "documents"
	IncludeMetadatas  Include = "metadatas"
)

// GetOptions selects rows from a collection.
//
// A nil Limit or Offset is omitted from the request. An empty, non-nil
// Include asks for ids only.
type GetOptions struct {
	IDs     []string
	Limit   *int
	Offset  *int
	Include []Include
}

// GetResult holds the column-oriented rows a Get returned.
//
// Columns that were not requested (or not returned) are nil. Individual cells
// may be nil when the server sent null for that row.
type GetResult struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []*string        `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

// CollectionInfo is the listing entry for a collection.
type CollectionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dialer opens clients. Dial must not leave shared state behind on failure.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Client, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, target Target) (Client, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, target Target) (Client, error) {
	return f(ctx, target)
}

// Client is a connection to one Chroma server, scoped to one tenant and database.
type Client interface {
	// Heartbeat returns the server clock in nanoseconds.
	Heartbeat(ctx context.Context) (int64, error)

	// Version returns the server version string.
	Version(ctx context.Context) (string, error)

	// Reset wipes the server. Servers started without ALLOW_RESET refuse it.
	Reset(ctx context.Context) (bool, error)

	// TenantExists reports whether tenant exists. A lookup that fails for any
	// reason other than "not found" is an error.
	TenantExists(ctx context.Context, tenant string) (bool, error)

	// DatabaseExists reports whether database exists in tenant.
	DatabaseExists(ctx context.Context, tenant, database string) (bool, error)

	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	GetCollection(ctx context.Context, name string) (Collection, error)
	CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
}

// Collection is a handle to a server-side collection.
type Collection interface {
	ID() string
	Name() string
	Metadata() map[string]any
	Configuration() map[string]any

	Get(ctx context.Context, opts GetOptions) (*GetResult, error)
}
