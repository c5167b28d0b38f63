package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/fyrsmithlabs/chromagate/internal/gateway"
	"github.com/fyrsmithlabs/chromagate/internal/records"
	"github.com/fyrsmithlabs/chromagate/internal/session"
)

// KindUnknownCommand is reported for a command name with no handler.
const KindUnknownCommand gateway.Kind = "unknown_command"

var errUnknownCommand = errors.New("unknown command")

type commandFunc func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error)

var commands = map[string]commandFunc{
	"create_client": func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var req gateway.ConnectRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return gw.Connect(ctx, req)
	},
	"health_check": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, _ json.RawMessage) (any, error) {
		ns, err := gw.HealthCheck(ctx)
		if err != nil {
			return nil, err
		}
		return newHeartbeatResponse(ns), nil
	}),
	"get_chroma_version": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, _ json.RawMessage) (any, error) {
		return gw.Version(ctx)
	}),
	"reset_chroma": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, _ json.RawMessage) (any, error) {
		return gw.Reset(ctx)
	}),
	"check_tenant_and_database": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var a tenantDatabaseArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return gw.CheckTenantAndDatabase(ctx, a.Tenant, a.Database)
	}),
	"fetch_collections": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, _ json.RawMessage) (any, error) {
		return gw.ListCollections(ctx)
	}),
	"fetch_collection_data": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var a collectionArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return gw.DescribeCollection(ctx, a.CollectionName)
	}),
	"create_collection": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var a createCollectionArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return gw.CreateCollection(ctx, a.CollectionName, a.Metadata)
	}),
	"delete_collection": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var a collectionArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return gw.DeleteCollection(ctx, a.CollectionName)
	}),
	"fetch_row_count": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var a collectionArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return gw.RowCount(ctx, a.CollectionName)
	}),
	"fetch_embeddings": sessionCommand(func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		var a fetchEmbeddingsArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return gw.FetchPage(ctx, records.PageRequest{
			Collection:  a.CollectionName,
			Limit:       a.Limit,
			OffsetIndex: a.OffsetIndex,
		})
	}),
}

// sessionCommand reports a missing session before fn decodes its arguments.
// A configured session is only ever replaced, never removed, so the check
// still holds when fn runs.
func sessionCommand(fn commandFunc) commandFunc {
	return func(ctx context.Context, gw *gateway.Gateway, args json.RawMessage) (any, error) {
		if _, ok := gw.Store().Current(); !ok {
			return nil, session.ErrNoSession
		}
		return fn(ctx, gw, args)
	}
}

// CommandNames lists the registered commands in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// decodeArgs reads a JSON object into v. An empty body is an empty object.
func decodeArgs(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '{' {
		return fmt.Errorf("%w: arguments must be a JSON object", gateway.ErrInvalidArgument)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode arguments: %v", gateway.ErrInvalidArgument, err)
	}
	return nil
}

// kindOf extends gateway.KindOf with the errors raised by this package.
func kindOf(err error) gateway.Kind {
	if errors.Is(err, errUnknownCommand) {
		return KindUnknownCommand
	}
	return gateway.KindOf(err)
}

func statusFor(kind gateway.Kind) int {
	switch kind {
	case gateway.KindNoSession:
		return http.StatusConflict
	case gateway.KindNegotiation, gateway.KindInvalidArgument:
		return http.StatusBadRequest
	case gateway.KindCollaborator, gateway.KindAlignment:
		return http.StatusBadGateway
	case KindUnknownCommand:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
