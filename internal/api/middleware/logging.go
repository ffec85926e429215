// Package middleware provides HTTP middleware components for the birdsong web shell.
package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/birdsong-go/birdsong/internal/logger"
)

// NewRequestLogger creates a request logging middleware on RequestLoggerWithConfig.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, nil)
}

// NewRequestLoggerWithSkipper creates a request logging middleware with a custom skipper.
func NewRequestLoggerWithSkipper(log logger.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:          skipper,
		LogStatus:        true,
		LogURI:           true,
		LogMethod:        true,
		LogLatency:       true,
		LogRemoteIP:      true,
		LogError:         true,
		LogRequestID:     true,
		LogContentLength: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.RequestID != "" {
				fields = append(fields, logger.String("request_id", v.RequestID))
			}
			if v.ContentLength != "" {
				fields = append(fields, logger.String("content_length", v.ContentLength))
			}

			reqLog := log.WithContext(c.Request().Context())
			if v.Error != nil {
				reqLog.Warn("request", append(fields, logger.Error(v.Error))...)
				return nil
			}
			reqLog.Info("request", fields...)
			return nil
		},
	})
}
