package metrics

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// EchoMiddleware records request metrics for each HTTP route.
// The method label is "<HTTP method> <route pattern>".
func EchoMiddleware(collector *Collector, exporter *PrometheusExporter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final
				c.Error(err)
			}

			method := c.Request().Method + " " + c.Path()
			duration := time.Since(start).Seconds()

			collector.RecordRequest(method)
			collector.RecordDuration(method, duration)
			if exporter != nil {
				exporter.RecordRequest(TransportHTTP, method)
				exporter.RecordDuration(TransportHTTP, method, duration)
			}

			if c.Response().Status >= http.StatusInternalServerError {
				collector.RecordError(method)
				if exporter != nil {
					exporter.RecordError(TransportHTTP, method)
				}
			}

			return nil
		}
	}
}
