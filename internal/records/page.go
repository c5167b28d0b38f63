package records

import (
	"errors"
	"fmt"
)

// ErrInvalidPage is returned by PageRequest.Validate.
var ErrInvalidPage = errors.New("invalid page request")

// PageRequest selects one page of a collection. OffsetIndex is a zero-based
// page number, not a row offset.
type PageRequest struct {
	Collection  string
	Limit       int
	OffsetIndex int
}

// Validate rejects requests that cannot map to a server-side skip.
func (p PageRequest) Validate() error {
	switch {
	case p.Collection == "":
		return fmt.Errorf("%w: collection name is required", ErrInvalidPage)
	case p.Limit < 0:
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidPage, p.Limit)
	case p.OffsetIndex < 0:
		return fmt.Errorf("%w: offset index must not be negative, got %d", ErrInvalidPage, p.OffsetIndex)
	}
	return nil
}

// Skip is the number of rows the server skips: OffsetIndex * Limit.
func (p PageRequest) Skip() int {
	return p.OffsetIndex * p.Limit
}

// LimitPtr returns nil for Limit 0, which means "no explicit limit".
func (p PageRequest) LimitPtr() *int {
	if p.Limit == 0 {
		return nil
	}
	limit := p.Limit
	return &limit
}

// OffsetPtr returns nil when nothing is skipped.
func (p PageRequest) OffsetPtr() *int {
	skip := p.Skip()
	if skip == 0 {
		return nil
	}
	return &skip
}
