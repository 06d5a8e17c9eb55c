package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/services"
)

const msgRelationshipUpdated = "Relationship updated successfully"

// MessageResponse is the success body of write endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// RelationshipListResponse is the body of the JSON relationship listing
type RelationshipListResponse struct {
	Items      []*services.ReportRow `json:"items"`
	TotalCount int                   `json:"total_count"`
}

// RelationshipHandler serves the relationship REST endpoints
type RelationshipHandler struct {
	service services.RelationshipServiceInterface
	logger  *zap.Logger
}

// NewRelationshipHandler creates a new RelationshipHandler
func NewRelationshipHandler(service services.RelationshipServiceInterface, logger *zap.Logger) *RelationshipHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipHandler{service: service, logger: logger}
}

// UpdateRelationship upserts one relationship from query, form or JSON
// parameters. Malformed values are coerced, never rejected.
func (h *RelationshipHandler) UpdateRelationship(c echo.Context) error {
	ctx := c.Request().Context()

	params, err := readParams(c)
	if err != nil {
		// An unreadable body leaves only the query parameters.
		logging.WithContext(ctx, h.logger).Debug("ignoring unreadable request body", zap.Error(err))
	}

	rel := relationshipFromParams(params)
	if err := h.service.UpsertRelationship(ctx, rel); err != nil {
		return relationshipWriteError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: msgRelationshipUpdated})
}

// ListRelationships returns every relationship with display names as JSON
func (h *RelationshipHandler) ListRelationships(c echo.Context) error {
	rows, err := h.service.Report(c.Request().Context())
	if err != nil {
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Failed to list relationships").withCause(err)
	}

	return c.JSON(http.StatusOK, RelationshipListResponse{Items: rows, TotalCount: len(rows)})
}

// Reconcile runs the bulk reconciliation pass
func (h *RelationshipHandler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.service.Reconcile(ctx)
	if err != nil {
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Failed to reconcile relationships").withCause(err)
	}

	fields := []zap.Field{
		zap.Int("companies_scanned", result.CompaniesScanned),
		zap.Int("pairs_written", result.PairsWritten),
		zap.Int("pairs_failed", result.PairsFailed),
	}
	if subject := SubjectFrom(c); subject != nil {
		fields = append(fields, zap.String("role", subject.Role))
	}
	logging.WithContext(ctx, h.logger).Info("relationships reconciled", fields...)

	return c.JSON(http.StatusOK, result)
}

func relationshipFromParams(params requestParams) *entities.Relationship {
	return &entities.Relationship{
		CompanyPostID: params.Int("company_post_id"),
		HeadingPostID: params.Int("heading_post_id"),
		CompanyID:     params.Text("company_id"),
		HeadingID:     params.Text("heading_id"),
		Ranking:       entities.ClampRanking(params.Int("ranking")),
	}
}
