// Package records turns column-oriented page results into aligned rows.
package records

import (
	"errors"
	"fmt"
)

// ErrMisaligned is matched by every *AlignmentError.
var ErrMisaligned = errors.New("page columns are misaligned")

// Columns are the parallel arrays returned by one page fetch.
// A nil column counts as empty.
type Columns struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []*string
	Metadatas  []map[string]any
}

// RowRecord is one collection entry rebuilt from the columns.
type RowRecord struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Document  string         `json:"document"`
	Metadata  map[string]any `json:"metadata"`
}

// AlignmentError reports the observed column lengths of a rejected page.
type AlignmentError struct {
	IDs        int
	Embeddings int
	Documents  int
	Metadatas  int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("page columns are misaligned: ids=%d embeddings=%d documents=%d metadatas=%d",
		e.IDs, e.Embeddings, e.Documents, e.Metadatas)
}

// Is makes errors.Is(err, ErrMisaligned) true.
func (e *AlignmentError) Is(target error) bool {
	return target == ErrMisaligned
}

// Normalize zips the columns by position. All four columns must have the same
// length or the whole page is rejected. Null cells become an empty vector,
// empty string, or empty map.
func Normalize(cols Columns) ([]RowRecord, error) {
	n := len(cols.IDs)
	if len(cols.Embeddings) != n || len(cols.Documents) != n || len(cols.Metadatas) != n {
		return nil, &AlignmentError{
			IDs:        n,
			Embeddings: len(cols.Embeddings),
			Documents:  len(cols.Documents),
			Metadatas:  len(cols.Metadatas),
		}
	}

	rows := make([]RowRecord, n)
	for i, id := range cols.IDs {
		row := RowRecord{
			ID:        id,
			Embedding: cols.Embeddings[i],
			Metadata:  cols.Metadatas[i],
		}
		if row.Embedding == nil {
			row.Embedding = []float32{}
		}
		if doc := cols.Documents[i]; doc != nil {
			row.Document = *doc
		}
		if row.Metadata == nil {
			row.Metadata = map[string]any{}
		}
		rows[i] = row
	}
	return rows, nil
}
