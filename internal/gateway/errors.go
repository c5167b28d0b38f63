package gateway

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
	"github.com/fyrsmithlabs/chromagate/internal/chroma"
	"github.com/fyrsmithlabs/chromagate/internal/records"
	"github.com/fyrsmithlabs/chromagate/internal/session"
)

// ErrInvalidArgument is returned for caller input rejected before any network call.
var ErrInvalidArgument = errors.New("invalid argument")

// CollaboratorError wraps a failure returned by the Chroma connection.
// Error() keeps the underlying message.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func collaborator(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}

// Kind classifies a gateway error for callers that need to branch on it.
type Kind string

const (
	KindNone            Kind = ""
	KindNoSession       Kind = "no_session"
	KindNegotiation     Kind = "negotiation"
	KindInvalidArgument Kind = "invalid_argument"
	KindCollaborator    Kind = "collaborator"
	KindAlignment       Kind = "alignment"
	KindInternal        Kind = "internal"
)

// KindOf reports the kind of err. A nil error has KindNone.
func KindOf(err error) Kind {
	var collabErr *CollaboratorError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, session.ErrNoSession):
		return KindNoSession
	case errors.Is(err, auth.ErrNegotiation):
		return KindNegotiation
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, records.ErrInvalidPage),
		errors.Is(err, chroma.ErrInvalidURL):
		return KindInvalidArgument
	case errors.Is(err, records.ErrMisaligned):
		return KindAlignment
	case errors.As(err, &collabErr):
		return KindCollaborator
	default:
		return KindInternal
	}
}
