package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
	"github.com/nichesite/directory/internal/services/authorization"
)

const subjectKey = "subject"

// RequestContext stores the request ID on the request context and echoes
// it in the response header.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := logging.SetRequestID(req.Context(), requestID)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			logging.WithContext(req.Context(), logger).Info("request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("route", c.Path()),
				zap.Int("status", res.Status),
				zap.String("remote_ip", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("response_size", res.Size),
			)
			return nil
		}
	}
}

// RequireCapability rejects the request unless the bearer token resolves to
// a subject holding capability. Nothing downstream runs on rejection.
func RequireCapability(guard *authorization.Guard, capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.RequireCapability")
			defer span.End()

			subject, err := guard.Authorize(ctx, c.Request().Header.Get(echo.HeaderAuthorization), capability)
			if err != nil {
				return authError(err)
			}

			c.Set(subjectKey, subject)
			ctx = logging.SetLogin(c.Request().Context(), subject.Login)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// SubjectFrom returns the authenticated subject of the request, if any
func SubjectFrom(c echo.Context) *entities.Subject {
	subject, _ := c.Get(subjectKey).(*entities.Subject)
	return subject
}
