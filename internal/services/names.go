package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/repositories"
	"github.com/nichesite/directory/pkg/cache"
)

// NamePlaceholder is shown when a record has no display name
const NamePlaceholder = "N/A"

// NameResolver looks up record display names, caching them when a cache is
// configured.
type NameResolver struct {
	records repositories.RecordRepository
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewNameResolver creates a new NameResolver. nameCache may be nil.
func NewNameResolver(records repositories.RecordRepository, nameCache cache.Cache, ttl time.Duration, logger *zap.Logger) *NameResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NameResolver{
		records: records,
		cache:   nameCache,
		ttl:     ttl,
		logger:  logger,
	}
}

// CompanyName returns the company_name field of a Company record
func (r *NameResolver) CompanyName(ctx context.Context, recordID int64) string {
	return r.name(ctx, recordID, entities.FieldCompanyName)
}

// HeadingName returns the heading_name field of a Heading record
func (r *NameResolver) HeadingName(ctx context.Context, recordID int64) string {
	return r.name(ctx, recordID, entities.FieldHeadingName)
}

// Invalidate drops the cached names of a record
func (r *NameResolver) Invalidate(ctx context.Context, recordID int64) {
	if r.cache == nil {
		return
	}
	for _, field := range []string{entities.FieldCompanyName, entities.FieldHeadingName} {
		if err := r.cache.Delete(ctx, nameKey(recordID, field)); err != nil {
			r.logger.Warn("failed to invalidate cached name",
				zap.Int64("record_id", recordID),
				zap.String("field", field),
				zap.Error(err),
			)
		}
	}
}

// HandleRecordSaved invalidates the names of the saved record
func (r *NameResolver) HandleRecordSaved(ctx context.Context, event *RecordSaved) {
	if event.Record == nil {
		return
	}
	r.Invalidate(ctx, event.Record.ID)
	if event.Record.IsRevision() {
		r.Invalidate(ctx, event.Record.ParentID)
	}
}

func (r *NameResolver) name(ctx context.Context, recordID int64, field string) string {
	key := nameKey(recordID, field)
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key); ok {
			return displayName(cached)
		}
	}

	value, err := r.records.GetField(ctx, recordID, field)
	if err != nil {
		if !errors.Is(err, repositories.ErrRecordNotFound) {
			r.logger.Warn("failed to read record name",
				zap.Int64("record_id", recordID),
				zap.String("field", field),
				zap.Error(err),
			)
		}
		return NamePlaceholder
	}

	name := entities.FieldString(value)
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, name, r.ttl); err != nil {
			r.logger.Debug("failed to cache record name", zap.String("key", key), zap.Error(err))
		}
	}
	return displayName(name)
}

func nameKey(recordID int64, field string) string {
	return fmt.Sprintf("name:%d:%s", recordID, field)
}

func displayName(name string) string {
	if name == "" {
		return NamePlaceholder
	}
	return name
}
