// Package api provides the birdsong web shell: the upload form, the result
// page, a JSON identify endpoint, health and Prometheus metrics.
package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/bytes"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("api")
	})
	return serviceLogger
}

// Default constants for the HTTP server.
const (
	DefaultListen          = ":8080"
	DefaultBodyLimit       = "25M"
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BodyLimit is the maximum request body size, e.g. "25M"
	BodyLimit string

	Debug bool
}

// ConfigFromSettings builds a Config from the web server settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
	if settings == nil {
		return cfg
	}
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.WebServer.MaxUploadSize != "" {
		cfg.BodyLimit = settings.WebServer.MaxUploadSize
	}
	cfg.Debug = settings.WebServer.Debug || settings.Debug
	return cfg
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := c.BodyLimitBytes(); err != nil {
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// BodyLimitBytes parses BodyLimit the same way echo's BodyLimit middleware does.
func (c *Config) BodyLimitBytes() (int64, error) {
	n, err := bytes.Parse(c.BodyLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid body limit %q: %w", c.BodyLimit, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("body limit must be positive, got %q", c.BodyLimit)
	}
	return n, nil
}
