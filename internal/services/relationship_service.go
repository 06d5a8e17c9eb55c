package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/infrastructure/messaging"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
	"github.com/nichesite/directory/internal/repositories"
)

// Write sources, used as metric labels and event sources
const (
	SourceAPI       = "api"
	SourceSync      = "sync"
	SourceReconcile = "reconcile"
)

// Write results
const (
	ResultOK          = "ok"
	ResultInsertError = "insert_error"
	ResultUpdateError = "update_error"
	ResultError       = "error"
)

// RelationshipServiceInterface defines the interface for relationship operations
type RelationshipServiceInterface interface {
	UpsertRelationship(ctx context.Context, rel *entities.Relationship) error
	Reconcile(ctx context.Context) (*ReconcileResult, error)
	Report(ctx context.Context) ([]*ReportRow, error)
	List(ctx context.Context) ([]*entities.Relationship, error)
}

// WriteRecorder receives one observation per relationship write
type WriteRecorder interface {
	RecordRelationshipWrite(source, result string)
}

// ReconcileResult summarizes a bulk reconciliation pass
type ReconcileResult struct {
	CompaniesScanned int `json:"companies_scanned"`
	PairsWritten     int `json:"pairs_written"`
	PairsFailed      int `json:"pairs_failed"`
}

// ReportRow is one line of the admin relationship report
type ReportRow struct {
	*entities.Relationship
	CompanyName    string `json:"company_name"`
	HeadingName    string `json:"heading_name"`
	CompanyEditURL string `json:"company_edit_url"`
	HeadingEditURL string `json:"heading_edit_url"`
}

// RelationshipService handles relationship writes, sync and reporting
type RelationshipService struct {
	relationships repositories.RelationshipRepository
	records       repositories.RecordRepository
	names         *NameResolver
	publisher     messaging.Publisher
	recorder      WriteRecorder
	editURL       string
	logger        *zap.Logger
}

// RelationshipServiceConfig holds the collaborators of a RelationshipService.
// Publisher, Recorder and Logger are optional.
type RelationshipServiceConfig struct {
	Relationships repositories.RelationshipRepository
	Records       repositories.RecordRepository
	Names         *NameResolver
	Publisher     messaging.Publisher
	Recorder      WriteRecorder
	EditURL       string // fmt pattern taking the record ID
	Logger        *zap.Logger
}

// NewRelationshipService creates a new RelationshipService
func NewRelationshipService(cfg RelationshipServiceConfig) *RelationshipService {
	s := &RelationshipService{
		relationships: cfg.Relationships,
		records:       cfg.Records,
		names:         cfg.Names,
		publisher:     cfg.Publisher,
		recorder:      cfg.Recorder,
		editURL:       cfg.EditURL,
		logger:        cfg.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.publisher == nil {
		s.publisher = messaging.NoopPublisher{}
	}
	if s.names == nil {
		s.names = NewNameResolver(cfg.Records, nil, 0, s.logger)
	}
	return s
}

// UpsertRelationship writes the relationship for its pair, overwriting the
// external IDs and ranking of an existing row. Errors wrap
// repositories.ErrInsertFailed or repositories.ErrUpdateFailed.
func (s *RelationshipService) UpsertRelationship(ctx context.Context, rel *entities.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "RelationshipService.UpsertRelationship")
	defer span.End()

	if rel == nil {
		return fmt.Errorf("relationship is required")
	}
	rel.CompanyID = entities.TruncateExternalID(rel.CompanyID)
	rel.HeadingID = entities.TruncateExternalID(rel.HeadingID)

	err := s.relationships.Upsert(ctx, rel)
	s.record(SourceAPI, err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert relationship %s: %w", rel.Pair(), err)
	}

	s.publish(ctx, SourceAPI, rel)
	return nil
}

// HandleRecordSaved re-syncs every Heading linked from a saved Company.
// Revisions, autosaves and non-Company records are ignored. Failures are
// logged only.
func (s *RelationshipService) HandleRecordSaved(ctx context.Context, event *RecordSaved) {
	if event == nil || event.Record == nil {
		return
	}
	rec := event.Record
	if event.Autosave || rec.IsRevision() || !rec.IsCompany() {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "RelationshipService.HandleRecordSaved")
	defer span.End()

	headingIDs := rec.RecordIDsField(entities.FieldHeadings)
	logging.WithContext(ctx, s.logger).Debug("syncing company relationships",
		zap.Int64("company_post_id", rec.ID),
		zap.Bool("update", event.Update),
		zap.Int("headings", len(headingIDs)),
	)

	for _, headingID := range headingIDs {
		if _, err := s.syncPair(ctx, SourceSync, rec, headingID); err != nil {
			logging.WithContext(ctx, s.logger).Error("failed to sync relationship",
				zap.Int64("company_post_id", rec.ID),
				zap.Int64("heading_post_id", headingID),
				zap.Error(err),
			)
		}
	}
}

// Reconcile writes every Heading pair of every published Company. A failing
// pair is logged and counted; the pass continues.
func (s *RelationshipService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipService.Reconcile")
	defer span.End()

	companies, err := s.records.ListByType(ctx, entities.PostTypeCompany)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	logger := logging.WithContext(ctx, s.logger)
	result := &ReconcileResult{}
	for _, company := range companies {
		if company.Status != entities.StatusPublish {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.CompaniesScanned++

		for _, headingID := range company.RecordIDsField(entities.FieldHeadings) {
			if _, err := s.syncPair(ctx, SourceReconcile, company, headingID); err != nil {
				result.PairsFailed++
				logger.Error("failed to reconcile relationship",
					zap.Int64("company_post_id", company.ID),
					zap.Int64("heading_post_id", headingID),
					zap.Error(err),
				)
				continue
			}
			result.PairsWritten++
		}
	}

	logger.Info("reconciliation finished",
		zap.Int("companies_scanned", result.CompaniesScanned),
		zap.Int("pairs_written", result.PairsWritten),
		zap.Int("pairs_failed", result.PairsFailed),
	)
	return result, nil
}

// syncPair writes one pair with the external IDs read live from both records.
func (s *RelationshipService) syncPair(ctx context.Context, source string, company *entities.Record, headingID int64) (*entities.Relationship, error) {
	headingValue, err := s.records.GetField(ctx, headingID, entities.FieldHeadingID)
	if err != nil {
		return nil, fmt.Errorf("failed to read heading ID: %w", err)
	}

	rel := &entities.Relationship{
		CompanyPostID: company.ID,
		HeadingPostID: headingID,
		CompanyID:     entities.TruncateExternalID(company.StringField(entities.FieldCompanyID)),
		HeadingID:     entities.TruncateExternalID(entities.FieldString(headingValue)),
	}

	err = s.relationships.SyncPair(ctx, rel)
	s.record(source, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, source, rel)
	return rel, nil
}

// List returns every relationship in storage order
func (s *RelationshipService) List(ctx context.Context) ([]*entities.Relationship, error) {
	rels, err := s.relationships.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return rels, nil
}

// Report returns every relationship in storage order with display names
// resolved. Missing names are rendered as NamePlaceholder.
func (s *RelationshipService) Report(ctx context.Context) ([]*ReportRow, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipService.Report")
	defer span.End()

	rels, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]*ReportRow, 0, len(rels))
	for _, rel := range rels {
		rows = append(rows, &ReportRow{
			Relationship:   rel,
			CompanyName:    s.names.CompanyName(ctx, rel.CompanyPostID),
			HeadingName:    s.names.HeadingName(ctx, rel.HeadingPostID),
			CompanyEditURL: s.EditURL(rel.CompanyPostID),
			HeadingEditURL: s.EditURL(rel.HeadingPostID),
		})
	}
	return rows, nil
}

// EditURL returns the edit page URL of a record, or "" when no pattern is configured
func (s *RelationshipService) EditURL(recordID int64) string {
	if s.editURL == "" {
		return ""
	}
	return fmt.Sprintf(s.editURL, recordID)
}

func (s *RelationshipService) record(source string, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordRelationshipWrite(source, writeResult(err))
}

func (s *RelationshipService) publish(ctx context.Context, source string, rel *entities.Relationship) {
	if err := s.publisher.PublishRelationshipEvent(ctx, messaging.NewRelationshipEvent(source, rel)); err != nil {
		logging.WithContext(ctx, s.logger).Warn("failed to publish relationship event",
			zap.Stringer("relationship", rel),
			zap.Error(err),
		)
	}
}

func writeResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, repositories.ErrInsertFailed):
		return ResultInsertError
	case errors.Is(err, repositories.ErrUpdateFailed):
		return ResultUpdateError
	default:
		return ResultError
	}
}
