package http

import (
	"strconv"

	"github.com/fyrsmithlabs/chromagate/internal/session"
)

// CommandResponse is the body of a successful command.
type CommandResponse struct {
	Result any `json:"result"`
}

// ErrorResponse is the body of a failed command. Error carries the full
// message, collaborator text included; Kind is stable for branching.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HeartbeatResponse is the health_check result. Nanosecond timestamps exceed
// 2^53, which JavaScript numbers cannot hold exactly; NanosecondsString
// carries the same value as decimal text.
type HeartbeatResponse struct {
	Nanoseconds       int64  `json:"nanosecond_heartbeat"`
	NanosecondsString string `json:"nanosecond_heartbeat_string"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Session *session.Info `json:"session"`
}

type tenantDatabaseArgs struct {
	Tenant   string `json:"tenant"`
	Database string `json:"database"`
}

type collectionArgs struct {
	CollectionName string `json:"collection_name"`
}

type createCollectionArgs struct {
	CollectionName string         `json:"collection_name"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type fetchEmbeddingsArgs struct {
	CollectionName string `json:"collection_name"`
	Limit          int    `json:"limit"`
	OffsetIndex    int    `json:"offset_index"`
}

func newHeartbeatResponse(ns int64) HeartbeatResponse {
	return HeartbeatResponse{Nanoseconds: ns, NanosecondsString: strconv.FormatInt(ns, 10)}
}
