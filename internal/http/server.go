// Package http serves the gateway commands over HTTP.
//
// Every command is POST /api/v1/commands/:name with a JSON object body.
// Success is {"result": ...}; failure is {"error": "...", "kind": "..."}
// with a status derived from the kind.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/chromagate/internal/config"
	"github.com/fyrsmithlabs/chromagate/internal/gateway"
	"github.com/fyrsmithlabs/chromagate/internal/logging"
	"github.com/fyrsmithlabs/chromagate/internal/telemetry"
)

const (
	// KindNotFound is reported for routes that do not exist.
	KindNotFound gateway.Kind = "not_found"
	// KindRateLimited is reported when server.rate_limit rejects a request.
	KindRateLimited gateway.Kind = "rate_limited"

	maxBody = "1M"
)

// Server provides HTTP endpoints for chromagate.
type Server struct {
	echo    *echo.Echo
	gateway *gateway.Gateway
	logger  *logging.Logger
	config  config.ServerConfig

	version  string
	tracer   trace.Tracer
	commands *CommandMetrics
}

type options struct {
	version     string
	telemetry   *telemetry.Telemetry
	registry    *prometheus.Registry
	metricsPath string
}

// Option configures NewServer.
type Option func(*options)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithTelemetry sets the tracer and meter source. Without it the global
// OTEL providers are used.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(o *options) { o.telemetry = t }
}

// WithRegistry sets the Prometheus registry for command metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithMetricsPath serves the registry on path. An empty path disables it.
func WithMetricsPath(path string) Option {
	return func(o *options) { o.metricsPath = path }
}

// NewServer creates the HTTP server over gw.
func NewServer(gw *gateway.Gateway, logger *logging.Logger, cfg config.ServerConfig, opts ...Option) (*Server, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		gateway:  gw,
		logger:   logger.Named("http"),
		config:   cfg,
		version:  o.version,
		tracer:   o.telemetry.Tracer(instrumentationName),
		commands: NewCommandMetrics(o.registry),
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(middleware.BodyLimit(maxBody))
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(o.telemetry.MeterProvider(), s.logger).Middleware())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     int(math.Max(1, math.Ceil(cfg.RateLimit))),
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}

	s.registerRoutes(o)
	return s, nil
}

func (s *Server) registerRoutes(o options) {
	s.echo.GET("/health", s.handleHealth)
	if o.metricsPath != "" {
		s.echo.GET(o.metricsPath, echo.WrapHandler(promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/commands/:name", s.handleCommand)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.version}
	if info, ok := s.gateway.Store().Current(); ok {
		resp.Session = &info
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCommand(c echo.Context) error {
	name := c.Param("name")
	run, ok := commands[name]
	if !ok {
		return s.writeError(c, name, fmt.Errorf("%w %q", errUnknownCommand, name))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	ctx := logging.WithCommand(c.Request().Context(), name)
	ctx = logging.WithLogger(ctx, s.logger)
	ctx, span := s.tracer.Start(ctx, "gateway."+name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("chromagate.command", name)),
	)
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	start := time.Now()
	result, err := run(ctx, s.gateway, body)
	kind := kindOf(err)
	s.commands.Observe(name, kind, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("chromagate.error_kind", string(kind)))
		return s.writeError(c, name, err)
	}

	s.logger.Debug(ctx, "command completed", zap.Duration("duration", time.Since(start)))
	return c.JSON(http.StatusOK, CommandResponse{Result: result})
}

func (s *Server) writeError(c echo.Context, name string, err error) error {
	kind := kindOf(err)
	status := statusFor(kind)

	ctx := c.Request().Context()
	if logging.CommandFromContext(ctx) == "" {
		ctx = logging.WithCommand(ctx, name)
	}
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "command failed", fields...)
	} else {
		s.logger.Warn(ctx, "command failed", fields...)
	}
	return c.JSON(status, ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// handleError renders echo errors (missing routes, rate limiting, body
// limit, recovered panics) in the command error shape.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	kind := gateway.KindInternal
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		kind = KindNotFound
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		kind = gateway.KindInvalidArgument
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
	}
	if err := c.JSON(status, ErrorResponse{Error: msg, Kind: string(kind)}); err != nil {
		s.logger.Warn(c.Request().Context(), "write error response", zap.Error(err))
	}
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
