package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aigate/internal/gateway"
	"aigate/internal/metrics"
)

// DefaultBodySizeLimit bounds request bodies (1MB).
const DefaultBodySizeLimit int64 = 1 << 20

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey     string           // Optional: master key for authentication
	BodySizeLimit int64            // Max request body size in bytes (default: 1MB)
	Metrics       *metrics.Metrics // Optional: exposes /metrics when set
	ReadTimeout   time.Duration    // Max time to read a request (0 = no limit)
	WriteTimeout  time.Duration    // Max time to write a response (0 = no limit)
}

// New creates a new HTTP server in front of the gateway
func New(gw *gateway.Gateway, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	if cfg != nil {
		e.Server.ReadTimeout = cfg.ReadTimeout
		e.Server.WriteTimeout = cfg.WriteTimeout
	}

	handler := NewHandler(gw)

	// Paths that skip authentication
	authSkipPaths := []string{"/health", "/metrics"}

	// Global middleware stack (order matters)
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	if cfg != nil && cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	// API routes
	e.POST("/v1/chat", handler.Chat)
	e.POST("/v1/chat/structured", handler.ChatStructured)
	e.POST("/v1/completions", handler.Complete)
	e.POST("/v1/embeddings", handler.Embeddings)
	e.POST("/v1/similar", handler.Similar)
	e.GET("/v1/usage/:tenant", handler.UsageStats)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// requestLogger logs one line per request through slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}
