// Package gateway implements the commands a caller can run against the
// configured Chroma session.
//
// Every operation except Connect runs inside session.WithSession and fails
// with session.ErrNoSession, whatever the arguments, before touching the
// network when nothing is configured. Collaborator failures are returned as
// *CollaboratorError with the original message intact. The gateway does not
// log; callers do.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
	"github.com/fyrsmithlabs/chromagate/internal/chroma"
	"github.com/fyrsmithlabs/chromagate/internal/records"
	"github.com/fyrsmithlabs/chromagate/internal/session"
)

// ConnectRequest configures the session. A nil Auth means no authentication.
// Auth holds the payload as decoded, so a non-object payload reaches the
// negotiator and fails there.
type ConnectRequest struct {
	URL      string `json:"url"`
	Auth     any    `json:"auth,omitempty"`
	Tenant   string `json:"tenant,omitempty"`
	Database string `json:"database,omitempty"`
}

// CollectionSummary is one entry of ListCollections.
type CollectionSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CollectionDetail is the result of DescribeCollection.
type CollectionDetail struct {
	ID            string         `json:"id"`
	Metadata      map[string]any `json:"metadata"`
	Configuration map[string]any `json:"configuration"`
}

// CreatedCollection is the result of CreateCollection.
type CreatedCollection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

var errNameRequired = fmt.Errorf("%w: collection name is required", ErrInvalidArgument)

// Gateway runs commands against a session store.
type Gateway struct {
	store *session.Store
}

// New returns a gateway over store.
func New(store *session.Store) *Gateway {
	return &Gateway{store: store}
}

// Store returns the session store the gateway reads.
func (g *Gateway) Store() *session.Store {
	return g.store
}

// Connect negotiates auth and replaces the session, returning the info of the
// session it installed. Negotiation errors are returned unwrapped so they stay
// distinct from connection failures.
func (g *Gateway) Connect(ctx context.Context, req ConnectRequest) (session.Info, error) {
	if strings.TrimSpace(req.URL) == "" {
		return session.Info{}, fmt.Errorf("%w: url is required", ErrInvalidArgument)
	}

	strategy, err := auth.NegotiateOptional(req.Auth)
	if err != nil {
		return session.Info{}, err
	}

	info, err := g.store.Configure(ctx, chroma.Target{
		URL:      req.URL,
		Strategy: strategy,
		Tenant:   req.Tenant,
		Database: req.Database,
	})
	if err != nil {
		return session.Info{}, collaborator("connect", err)
	}
	return info, nil
}

// HealthCheck returns the server heartbeat in nanoseconds.
func (g *Gateway) HealthCheck(ctx context.Context) (int64, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (int64, error) {
		ts, err := s.Client.Heartbeat(ctx)
		if err != nil {
			return 0, collaborator("health check", err)
		}
		return ts, nil
	})
}

// Version returns the server version.
func (g *Gateway) Version(ctx context.Context) (string, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (string, error) {
		v, err := s.Client.Version(ctx)
		if err != nil {
			return "", collaborator("get version", err)
		}
		return v, nil
	})
}

// Reset wipes the server.
func (g *Gateway) Reset(ctx context.Context) (bool, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (bool, error) {
		ok, err := s.Client.Reset(ctx)
		if err != nil {
			return false, collaborator("reset", err)
		}
		return ok, nil
	})
}

// CheckTenantAndDatabase reports whether both tenant and database exist.
// A tenant lookup error stops the check. A missing tenant does not: the
// database is still checked and the answer is the AND of both.
func (g *Gateway) CheckTenantAndDatabase(ctx context.Context, tenant, database string) (bool, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (bool, error) {
		if tenant == "" || database == "" {
			return false, fmt.Errorf("%w: tenant and database are required", ErrInvalidArgument)
		}
		tenantOK, err := s.Client.TenantExists(ctx, tenant)
		if err != nil {
			return false, collaborator(fmt.Sprintf("check tenant %q", tenant), err)
		}
		dbOK, err := s.Client.DatabaseExists(ctx, tenant, database)
		if err != nil {
			return false, collaborator(fmt.Sprintf("check database %q", database), err)
		}
		return tenantOK && dbOK, nil
	})
}

// ListCollections returns the collections in server order.
func (g *Gateway) ListCollections(ctx context.Context) ([]CollectionSummary, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) ([]CollectionSummary, error) {
		infos, err := s.Client.ListCollections(ctx)
		if err != nil {
			return nil, collaborator("list collections", err)
		}
		out := make([]CollectionSummary, len(infos))
		for i, info := range infos {
			out[i] = CollectionSummary{ID: info.ID, Name: info.Name}
		}
		return out, nil
	})
}

// DescribeCollection returns the id, metadata and configuration of name.
func (g *Gateway) DescribeCollection(ctx context.Context, name string) (CollectionDetail, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (CollectionDetail, error) {
		if name == "" {
			return CollectionDetail{}, errNameRequired
		}
		col, err := s.Client.GetCollection(ctx, name)
		if err != nil {
			return CollectionDetail{}, collaborator(fmt.Sprintf("get collection %q", name), err)
		}
		return CollectionDetail{
			ID:            col.ID(),
			Metadata:      col.Metadata(),
			Configuration: col.Configuration(),
		}, nil
	})
}

// CreateCollection creates name with optional metadata.
func (g *Gateway) CreateCollection(ctx context.Context, name string, metadata map[string]any) (CreatedCollection, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (CreatedCollection, error) {
		if name == "" {
			return CreatedCollection{}, errNameRequired
		}
		col, err := s.Client.CreateCollection(ctx, name, metadata)
		if err != nil {
			return CreatedCollection{}, collaborator(fmt.Sprintf("create collection %q", name), err)
		}
		return CreatedCollection{ID: col.ID(), Name: col.Name(), Metadata: col.Metadata()}, nil
	})
}

// DeleteCollection removes name.
func (g *Gateway) DeleteCollection(ctx context.Context, name string) (bool, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (bool, error) {
		if name == "" {
			return false, errNameRequired
		}
		if err := s.Client.DeleteCollection(ctx, name); err != nil {
			return false, collaborator(fmt.Sprintf("delete collection %q", name), err)
		}
		return true, nil
	})
}

// RowCount counts the rows of name by fetching ids only.
func (g *Gateway) RowCount(ctx context.Context, name string) (int, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) (int, error) {
		if name == "" {
			return 0, errNameRequired
		}
		col, err := s.Client.GetCollection(ctx, name)
		if err != nil {
			return 0, collaborator(fmt.Sprintf("get collection %q", name), err)
		}
		res, err := col.Get(ctx, chroma.GetOptions{Include: []chroma.Include{}})
		if err != nil {
			return 0, collaborator(fmt.Sprintf("count rows of %q", name), err)
		}
		return len(res.IDs), nil
	})
}

// FetchPage returns one page of rows. A page whose columns differ in length
// is rejected with *records.AlignmentError.
func (g *Gateway) FetchPage(ctx context.Context, req records.PageRequest) ([]records.RowRecord, error) {
	return session.WithSession(ctx, g.store, func(ctx context.Context, s *session.Session) ([]records.RowRecord, error) {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		col, err := s.Client.GetCollection(ctx, req.Collection)
		if err != nil {
			return nil, collaborator(fmt.Sprintf("get collection %q", req.Collection), err)
		}

		res, err := col.Get(ctx, chroma.GetOptions{
			Limit:   req.LimitPtr(),
			Offset:  req.OffsetPtr(),
			Include: []chroma.Include{chroma.IncludeEmbeddings, chroma.IncludeDocuments, chroma.IncludeMetadatas},
		})
		if err != nil {
			return nil, collaborator(fmt.Sprintf("fetch page of %q", req.Collection), err)
		}

		return records.Normalize(records.Columns{
			IDs:        res.IDs,
			Embeddings: res.Embeddings,
			Documents:  res.Documents,
			Metadatas:  res.Metadatas,
		})
	})
}
