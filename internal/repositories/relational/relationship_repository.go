package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/database"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
	"github.com/nichesite/directory/internal/repositories"
)

const relationshipsTable = "company_heading_relationships"

var (
	relationshipColumns = []string{
		"id", "company_post_id", "heading_post_id", "company_id", "heading_id", "ranking", "created_at", "updated_at",
	}
	pairColumns = []string{"company_post_id", "heading_post_id"}
)

// SQLRelationshipRepository implements RelationshipRepository on PostgreSQL, MySQL or SQLite
type SQLRelationshipRepository struct {
	db *database.DB
}

// NewSQLRelationshipRepository creates a new relationship repository
func NewSQLRelationshipRepository(db *database.DB) repositories.RelationshipRepository {
	return &SQLRelationshipRepository{db: db}
}

// Upsert writes the relationship in a single conditional statement.
// The existence probe only decides how a failure is reported.
func (r *SQLRelationshipRepository) Upsert(ctx context.Context, rel *entities.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "relational.RelationshipRepository.Upsert")
	defer span.End()

	return r.write(ctx, rel, rel.Ranking, []string{"company_id", "heading_id", "ranking", "updated_at"})
}

// SyncPair inserts the pair with ranking 0, or refreshes the external IDs of
// an existing row while keeping its ranking.
func (r *SQLRelationshipRepository) SyncPair(ctx context.Context, rel *entities.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "relational.RelationshipRepository.SyncPair")
	defer span.End()

	return r.write(ctx, rel, 0, []string{"company_id", "heading_id", "updated_at"})
}

func (r *SQLRelationshipRepository) write(ctx context.Context, rel *entities.Relationship, ranking int, updateCols []string) error {
	existed, probeErr := r.exists(ctx, rel.Pair())
	failed := repositories.ErrInsertFailed
	if probeErr == nil && existed {
		failed = repositories.ErrUpdateFailed
	}

	if err := rel.Validate(); err != nil {
		return fmt.Errorf("%w: %w", failed, err)
	}

	now := time.Now().UTC()
	ib := r.db.Dialect.Flavor().NewInsertBuilder()
	ib.InsertInto(relationshipsTable)
	ib.Cols("company_post_id", "heading_post_id", "company_id", "heading_id", "ranking", "created_at", "updated_at")
	ib.Values(rel.CompanyPostID, rel.HeadingPostID, rel.CompanyID, rel.HeadingID, ranking, now, now)

	query, args := ib.Build()
	query += " " + r.db.Dialect.UpsertClause(pairColumns, updateCols)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", failed, err)
	}

	// The row is committed; a failed read-back leaves the caller's values in place.
	stored, err := r.Get(ctx, rel.Pair())
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return nil
	}
	*rel = *stored

	return nil
}

func (r *SQLRelationshipRepository) exists(ctx context.Context, pair entities.Pair) (bool, error) {
	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(relationshipsTable)
	sb.Where(
		sb.Equal("company_post_id", pair.CompanyPostID),
		sb.Equal("heading_post_id", pair.HeadingPostID),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check relationship existence: %w", err)
	}
	return count > 0, nil
}

// Get retrieves the relationship for a pair
func (r *SQLRelationshipRepository) Get(ctx context.Context, pair entities.Pair) (*entities.Relationship, error) {
	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select(relationshipColumns...)
	sb.From(relationshipsTable)
	sb.Where(
		sb.Equal("company_post_id", pair.CompanyPostID),
		sb.Equal("heading_post_id", pair.HeadingPostID),
	)

	query, args := sb.Build()
	var rel entities.Relationship
	err := r.db.GetContext(ctx, &rel, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repositories.ErrRelationshipNotFound, pair)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}

	return &rel, nil
}

// List retrieves every relationship in storage order
func (r *SQLRelationshipRepository) List(ctx context.Context) ([]*entities.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relational.RelationshipRepository.List")
	defer span.End()

	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select(relationshipColumns...)
	sb.From(relationshipsTable)
	sb.OrderBy("id")

	query, args := sb.Build()
	var rels []*entities.Relationship
	if err := r.db.SelectContext(ctx, &rels, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}

	return rels, nil
}

// Count returns the number of stored relationships
func (r *SQLRelationshipRepository) Count(ctx context.Context) (int64, error) {
	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(relationshipsTable)

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count relationships: %w", err)
	}

	return count, nil
}
