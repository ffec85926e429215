package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/birdsong-go/birdsong/internal/api/middleware"
	"github.com/birdsong-go/birdsong/internal/buildinfo"
	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/myaudio"
	"github.com/birdsong-go/birdsong/internal/observability"
	"github.com/birdsong-go/birdsong/internal/pipeline"
	"github.com/birdsong-go/birdsong/internal/species"
)

// Identifier runs one identification. *pipeline.Pipeline implements it.
type Identifier interface {
	Identify(ctx context.Context, buf myaudio.AudioBuffer) (*pipeline.Result, error)
}

// Server is the birdsong HTTP server.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	identifier   Identifier
	labels       *species.LabelMap
	metrics      *observability.Metrics
	buildInfo    buildinfo.BuildInfo
	providerName string

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithIdentifier sets the pipeline that serves identify requests.
func WithIdentifier(id Identifier) ServerOption {
	return func(s *Server) {
		s.identifier = id
	}
}

// WithLabels exposes the label map on /api/v1/species.
func WithLabels(labels *species.LabelMap) ServerOption {
	return func(s *Server) {
		s.labels = labels
	}
}

// WithMetrics enables /metrics and HTTP request metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo sets the version reported by /health and the page footer.
func WithBuildInfo(bi buildinfo.BuildInfo) ServerOption {
	return func(s *Server) {
		s.buildInfo = bi
	}
}

// WithProviderName sets the image provider name shown in image captions.
func WithProviderName(name string) ServerOption {
	return func(s *Server) {
		s.providerName = name
	}
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates the HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, errors.New(fmt.Errorf("invalid server configuration: %w", err)).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		config:    config,
		settings:  settings,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.identifier == nil {
		return nil, errors.Newf("api: identifier is required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.buildInfo == nil {
		s.buildInfo = buildinfo.NewContext("", "")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"))

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	renderer, err := newTemplateRenderer(s.log)
	if err != nil {
		return nil, err
	}
	s.echo.Renderer = renderer

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("metrics", s.metrics != nil))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log.Module("http"), func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	}))
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.POST("/identify", s.handleIdentifyForm)
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/identify", s.handleIdentifyAPI)
	v1.GET("/species", s.handleSpecies)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.buildInfo.GetVersion(),
		"build_date":     s.buildInfo.GetBuildDate(),
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		err := s.echo.Start(s.config.Listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutdown signal received, initiating graceful shutdown")
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("server shutdown complete")
	return nil
}
