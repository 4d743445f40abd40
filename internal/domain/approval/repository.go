package approval

import (
	"context"

	"procura/internal/core/id"
)

// Repository persists approval trails for every document type in one table.
type Repository interface {
	// GetTrail returns all rounds of a document ordered by round and seq.
	GetTrail(ctx context.Context, documentType string, documentID id.ID) (Trail, error)

	// SaveTrail upserts every record of trail. Records are never deleted.
	SaveTrail(ctx context.Context, trail Trail) error
}
