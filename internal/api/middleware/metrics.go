package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/observability/metrics"
)

// NewMetrics records request counts, latencies and upload sizes. Routes are
// labelled by their registered path so unmatched URLs do not explode cardinality.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			req := c.Request()
			if req.Method == http.MethodPost && req.ContentLength > 0 {
				m.ObserveUploadSize(req.ContentLength)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordHTTPRequest(req.Method, path, status, time.Since(start).Seconds())
			return err
		}
	}
}
