package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
	"github.com/nichesite/directory/internal/repositories"
)

// ErrInvalidRecord is returned when a record fails validation
var ErrInvalidRecord = errors.New("invalid record")

// RecordServiceInterface defines the interface for host record operations
type RecordServiceInterface interface {
	Create(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error)
	Save(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error)
	Get(ctx context.Context, id int64) (*entities.Record, error)
}

// RecordService persists records and dispatches RecordSaved after each write
type RecordService struct {
	records    repositories.RecordRepository
	dispatcher *Dispatcher
}

// NewRecordService creates a new RecordService
func NewRecordService(records repositories.RecordRepository, dispatcher *Dispatcher) *RecordService {
	return &RecordService{
		records:    records,
		dispatcher: dispatcher,
	}
}

// Create stores a new record and returns it as persisted
func (s *RecordService) Create(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "RecordService.Create")
	defer span.End()

	if rec.Status == "" {
		rec.Status = entities.StatusPublish
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	return s.reloadAndDispatch(ctx, rec.ID, autosave, false)
}

// Save overwrites an existing record. Fields absent from rec keep their
// stored values. Returns an error wrapping repositories.ErrRecordNotFound
// when the record does not exist.
func (s *RecordService) Save(ctx context.Context, rec *entities.Record, autosave bool) (*entities.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "RecordService.Save")
	defer span.End()

	if rec.Status == "" {
		rec.Status = entities.StatusPublish
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if err := s.records.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	return s.reloadAndDispatch(ctx, rec.ID, autosave, true)
}

// Get retrieves a record with all of its fields
func (s *RecordService) Get(ctx context.Context, id int64) (*entities.Record, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// reloadAndDispatch reads the full record back so subscribers see every
// field, not only the ones written by this call.
func (s *RecordService) reloadAndDispatch(ctx context.Context, id int64, autosave, update bool) (*entities.Record, error) {
	saved, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload record: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchRecordSaved(ctx, &RecordSaved{
			Record:   saved,
			Autosave: autosave,
			Update:   update,
		})
	}
	return saved, nil
}
