package repositories

import (
	"context"

	"github.com/nichesite/directory/internal/entities"
)

// RelationshipRepository defines the interface for relationship data access
type RelationshipRepository interface {
	// Upsert writes the relationship for its (company_post_id, heading_post_id)
	// pair, overwriting external IDs and ranking when the pair already exists.
	// Failures wrap ErrInsertFailed or ErrUpdateFailed.
	Upsert(ctx context.Context, rel *entities.Relationship) error

	// SyncPair writes the pair with ranking 0 when it is new, and only
	// refreshes the external IDs of an existing row.
	SyncPair(ctx context.Context, rel *entities.Relationship) error

	// Get retrieves the relationship for a pair
	// Returns ErrRelationshipNotFound when the pair has no row
	Get(ctx context.Context, pair entities.Pair) (*entities.Relationship, error)

	// List retrieves every relationship in storage order
	List(ctx context.Context) ([]*entities.Relationship, error)

	// Count returns the number of stored relationships
	Count(ctx context.Context) (int64, error)
}
