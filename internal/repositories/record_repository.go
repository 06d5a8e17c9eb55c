package repositories

import (
	"context"

	"github.com/nichesite/directory/internal/entities"
)

// RecordRepository defines the interface for the host record store
type RecordRepository interface {
	// Create inserts a record with its fields and assigns its ID
	Create(ctx context.Context, rec *entities.Record) error

	// Update overwrites the record columns and upserts the given fields;
	// fields not present on rec are left untouched
	Update(ctx context.Context, rec *entities.Record) error

	// Get retrieves a record with all of its fields
	// Returns ErrRecordNotFound when the record does not exist
	Get(ctx context.Context, id int64) (*entities.Record, error)

	// ListByType retrieves every record of a post type ordered by ID
	ListByType(ctx context.Context, postType string) ([]*entities.Record, error)

	// GetField retrieves a single field value; nil when absent
	GetField(ctx context.Context, recordID int64, name string) (interface{}, error)
}
