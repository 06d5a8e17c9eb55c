package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/database"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
	"github.com/nichesite/directory/internal/repositories"
)

const (
	recordsTable      = "records"
	recordFieldsTable = "record_fields"
)

var recordColumns = []string{"id", "post_type", "title", "status", "parent_id", "created_at", "updated_at"}

// SQLRecordRepository implements RecordRepository on PostgreSQL, MySQL or SQLite
type SQLRecordRepository struct {
	db *database.DB
}

// NewSQLRecordRepository creates a new record repository
func NewSQLRecordRepository(db *database.DB) repositories.RecordRepository {
	return &SQLRecordRepository{db: db}
}

// Create inserts a record with its fields and assigns its ID
func (r *SQLRecordRepository) Create(ctx context.Context, rec *entities.Record) error {
	ctx, span := tracing.StartSpan(ctx, "relational.RecordRepository.Create")
	defer span.End()

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ib := r.db.Dialect.Flavor().NewInsertBuilder()
	ib.InsertInto(recordsTable)
	ib.Cols("post_type", "title", "status", "parent_id", "created_at", "updated_at")
	ib.Values(rec.PostType, rec.Title, rec.Status, rec.ParentID, now, now)
	query, args := ib.Build()

	var id int64
	if r.db.Dialect.SupportsReturning() {
		if err := tx.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get record ID: %w", err)
		}
	}

	if err := r.writeFields(ctx, tx, id, rec.Fields, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// Update overwrites the record columns and upserts the given fields
func (r *SQLRecordRepository) Update(ctx context.Context, rec *entities.Record) error {
	ctx, span := tracing.StartSpan(ctx, "relational.RecordRepository.Update")
	defer span.End()

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Existence is checked explicitly: MySQL reports zero affected rows for no-op updates
	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select("created_at")
	sb.From(recordsTable)
	sb.Where(sb.Equal("id", rec.ID))
	query, args := sb.Build()

	var createdAt time.Time
	err = tx.GetContext(ctx, &createdAt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", repositories.ErrRecordNotFound, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up record: %w", err)
	}

	now := time.Now().UTC()
	ub := r.db.Dialect.Flavor().NewUpdateBuilder()
	ub.Update(recordsTable)
	ub.Set(
		ub.Assign("post_type", rec.PostType),
		ub.Assign("title", rec.Title),
		ub.Assign("status", rec.Status),
		ub.Assign("parent_id", rec.ParentID),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", rec.ID))
	query, args = ub.Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	if err := r.writeFields(ctx, tx, rec.ID, rec.Fields, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.CreatedAt = createdAt
	rec.UpdatedAt = now
	return nil
}

func (r *SQLRecordRepository) writeFields(ctx context.Context, tx *sqlx.Tx, recordID int64, fields map[string]interface{}, now time.Time) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	upsert := r.db.Dialect.UpsertClause([]string{"record_id", "name"}, []string{"value", "updated_at"})
	for _, name := range names {
		field := &entities.Field{RecordID: recordID, Name: name, Value: fields[name]}
		if err := field.Validate(); err != nil {
			return fmt.Errorf("invalid field: %w", err)
		}
		value, err := field.MarshalValue()
		if err != nil {
			return err
		}

		ib := r.db.Dialect.Flavor().NewInsertBuilder()
		ib.InsertInto(recordFieldsTable)
		ib.Cols("record_id", "name", "value", "updated_at")
		ib.Values(recordID, name, value, now)
		query, args := ib.Build()

		if _, err := tx.ExecContext(ctx, query+" "+upsert, args...); err != nil {
			return fmt.Errorf("failed to write field %s: %w", field, err)
		}
	}

	return nil
}

// Get retrieves a record with all of its fields
func (r *SQLRecordRepository) Get(ctx context.Context, id int64) (*entities.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "relational.RecordRepository.Get")
	defer span.End()

	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From(recordsTable)
	sb.Where(sb.Equal("id", id))
	query, args := sb.Build()

	var rec entities.Record
	err := r.db.GetContext(ctx, &rec, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", repositories.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	fields, err := r.readFields(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	rec.Fields = fields[id]
	if rec.Fields == nil {
		rec.Fields = make(map[string]interface{})
	}

	return &rec, nil
}

// ListByType retrieves every record of a post type ordered by ID
func (r *SQLRecordRepository) ListByType(ctx context.Context, postType string) ([]*entities.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "relational.RecordRepository.ListByType")
	defer span.End()

	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From(recordsTable)
	sb.Where(sb.Equal("post_type", postType))
	sb.OrderBy("id")
	query, args := sb.Build()

	var recs []*entities.Record
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if len(recs) == 0 {
		return recs, nil
	}

	ids := make([]int64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	fields, err := r.readFields(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec.Fields = fields[rec.ID]
		if rec.Fields == nil {
			rec.Fields = make(map[string]interface{})
		}
	}

	return recs, nil
}

// GetField retrieves a single field value; nil when absent
func (r *SQLRecordRepository) GetField(ctx context.Context, recordID int64, name string) (interface{}, error) {
	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select("value")
	sb.From(recordFieldsTable)
	sb.Where(
		sb.Equal("record_id", recordID),
		sb.Equal("name", name),
	)
	query, args := sb.Build()

	var raw string
	err := r.db.GetContext(ctx, &raw, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field value: %w", err)
	}

	field := &entities.Field{RecordID: recordID, Name: name}
	if err := field.UnmarshalValue(raw); err != nil {
		return nil, err
	}
	return field.Value, nil
}

func (r *SQLRecordRepository) readFields(ctx context.Context, ids []int64) (map[int64]map[string]interface{}, error) {
	in := make([]interface{}, len(ids))
	for i, id := range ids {
		in[i] = id
	}

	sb := r.db.Dialect.Flavor().NewSelectBuilder()
	sb.Select("record_id", "name", "value")
	sb.From(recordFieldsTable)
	sb.Where(sb.In("record_id", in...))
	query, args := sb.Build()

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]interface{}, len(ids))
	for rows.Next() {
		var (
			recordID int64
			name     string
			raw      string
		)
		if err := rows.Scan(&recordID, &name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}

		field := &entities.Field{RecordID: recordID, Name: name}
		if err := field.UnmarshalValue(raw); err != nil {
			return nil, err
		}
		if out[recordID] == nil {
			out[recordID] = make(map[string]interface{})
		}
		out[recordID][name] = field.Value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	return out, nil
}
