package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/repositories"
	"github.com/nichesite/directory/internal/services"
)

var validate = validator.New()

// RecordRequest is the body of record create and save requests
type RecordRequest struct {
	PostType string                 `json:"post_type" validate:"required,max=20"`
	Title    string                 `json:"title" validate:"max=255"`
	Status   string                 `json:"status" validate:"omitempty,max=20"`
	ParentID int64                  `json:"parent_id" validate:"gte=0"`
	Autosave bool                   `json:"autosave"`
	Fields   map[string]interface{} `json:"fields" validate:"omitempty,dive,keys,required,max=255,endkeys"`
}

// RecordHandler serves the host record store endpoints
type RecordHandler struct {
	service services.RecordServiceInterface
	logger  *zap.Logger
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(service services.RecordServiceInterface, logger *zap.Logger) *RecordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordHandler{service: service, logger: logger}
}

// Create stores a new record
func (h *RecordHandler) Create(c echo.Context) error {
	req, err := bindRecordRequest(c)
	if err != nil {
		return err
	}

	saved, err := h.service.Create(c.Request().Context(), req.toRecord(0), req.Autosave)
	if err != nil {
		return recordError(err)
	}

	return c.JSON(http.StatusCreated, saved)
}

// Save overwrites an existing record and runs the save hooks
func (h *RecordHandler) Save(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	req, err := bindRecordRequest(c)
	if err != nil {
		return err
	}

	saved, err := h.service.Save(c.Request().Context(), req.toRecord(id), req.Autosave)
	if err != nil {
		return recordError(err)
	}

	return c.JSON(http.StatusOK, saved)
}

// Get returns a record with its fields
func (h *RecordHandler) Get(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}

	rec, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return recordError(err)
	}

	return c.JSON(http.StatusOK, rec)
}

func bindRecordRequest(c echo.Context) (*RecordRequest, error) {
	var req RecordRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return nil, NewAPIError(http.StatusBadRequest, CodeInvalidParam, "invalid request body").withCause(err)
	}
	if err := validate.Struct(req); err != nil {
		return nil, NewAPIError(http.StatusBadRequest, CodeInvalidParam, err.Error()).withCause(err)
	}
	return &req, nil
}

func (r *RecordRequest) toRecord(id int64) *entities.Record {
	return &entities.Record{
		ID:       id,
		PostType: r.PostType,
		Title:    r.Title,
		Status:   r.Status,
		ParentID: r.ParentID,
		Fields:   r.Fields,
	}
}

func recordID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewAPIError(http.StatusBadRequest, CodeInvalidParam, "invalid record ID")
	}
	return id, nil
}

func recordError(err error) *APIError {
	switch {
	case errors.Is(err, repositories.ErrRecordNotFound):
		return NewAPIError(http.StatusNotFound, CodeNotFound, "Record not found").withCause(err)
	case errors.Is(err, services.ErrInvalidRecord):
		return NewAPIError(http.StatusBadRequest, CodeInvalidParam, err.Error()).withCause(err)
	default:
		return NewAPIError(http.StatusInternalServerError, CodeInternalError, "Record store error").withCause(err)
	}
}
