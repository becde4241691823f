package ingest

import (
	"fmt"

	"github.com/ontomart/ontomart/api/schemas"
)

// Error reports an ingestion run that failed after some batches were already
// committed. Partial carries the counts from every batch that succeeded
// before the run stopped; batches are never rolled back, so those writes are
// durable and the caller is expected to surface the partial totals rather
// than discard them.
type Error struct {
	Partial schemas.IngestStats
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingestion failed with partial results (nodes=%d, relationships=%d): %v",
		e.Partial.Nodes, e.Partial.Relationships, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
