package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/repositories"
	"github.com/nichesite/directory/internal/services/authorization"
)

// Error codes returned in the error envelope
const (
	CodeForbidden     = "rest_forbidden"
	CodeInsertError   = "db_insert_error"
	CodeUpdateError   = "db_update_error"
	CodeInvalidParam  = "rest_invalid_param"
	CodeNotFound      = "rest_not_found"
	CodeNoRoute       = "rest_no_route"
	CodeInternalError = "internal_server_error"
)

const (
	msgForbidden   = "Sorry, you are not allowed to do that."
	msgInsertError = "Failed to insert new relationship"
	msgUpdateError = "Failed to update relationship"
)

// ErrorData carries the HTTP status inside the envelope
type ErrorData struct {
	Status int `json:"status"`
}

// APIError is the JSON error envelope: {"code","message","data":{"status"}}
type APIError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    ErrorData `json:"data"`

	err error
}

// NewAPIError creates an APIError for the given status
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Code: code, Message: message, Data: ErrorData{Status: status}}
}

func (e *APIError) Error() string {
	if e.err != nil {
		return e.Code + ": " + e.err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.err
}

// withCause attaches the underlying error for logging
func (e *APIError) withCause(err error) *APIError {
	e.err = err
	return e
}

// relationshipWriteError maps a failed upsert to its envelope
func relationshipWriteError(err error) *APIError {
	if errors.Is(err, repositories.ErrInsertFailed) {
		return NewAPIError(http.StatusInternalServerError, CodeInsertError, msgInsertError).withCause(err)
	}
	return NewAPIError(http.StatusInternalServerError, CodeUpdateError, msgUpdateError).withCause(err)
}

// authError maps a Guard failure to its envelope
func authError(err error) *APIError {
	status := http.StatusForbidden
	if errors.Is(err, authorization.ErrUnauthenticated) {
		status = http.StatusUnauthorized
	}
	return NewAPIError(status, CodeForbidden, msgForbidden).withCause(err)
}

// HTTPErrorHandler renders every error returned by a handler in the envelope
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = fromHTTPError(httpErr)
		default:
			apiErr = NewAPIError(http.StatusInternalServerError, CodeInternalError, http.StatusText(http.StatusInternalServerError))
		}

		log := logging.WithContext(c.Request().Context(), logger)
		if apiErr.Data.Status >= http.StatusInternalServerError {
			log.Error("api is returning an error", zap.String("code", apiErr.Code), zap.Error(err))
		} else {
			log.Debug("api is returning an error", zap.String("code", apiErr.Code), zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(apiErr.Data.Status)
		} else {
			writeErr = c.JSON(apiErr.Data.Status, apiErr)
		}
		if writeErr != nil {
			log.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}

func fromHTTPError(he *echo.HTTPError) *APIError {
	message, ok := he.Message.(string)
	if !ok {
		message = http.StatusText(he.Code)
	}

	code := CodeInternalError
	switch {
	case he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed:
		code = CodeNoRoute
	case he.Code == http.StatusUnauthorized || he.Code == http.StatusForbidden:
		code = CodeForbidden
	case he.Code < http.StatusInternalServerError:
		code = CodeInvalidParam
	}
	return NewAPIError(he.Code, code, message).withCause(he)
}
