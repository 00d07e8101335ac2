// Package httpapi exposes the retrieval core as a JSON HTTP API.
//
// Routes:
//
//	GET    /api/v1/health
//	GET    /api/v1/products/:id/recommendations?k=&diversity=
//	GET    /api/v1/search?q=&k=&category=1,2&min_price=&max_price=
//	POST   /api/v1/assistant/ask
//	GET    /api/v1/ml/status
//	GET    /api/v1/ml/manifest
//	POST   /api/v1/ml/rebuild/:artifact?force=
//	GET    /api/v1/ml/cache
//	DELETE /api/v1/ml/cache
//	GET    /api/v1/ml/tasks?history=
//	POST   /api/v1/ml/tasks/:id/run
package httpapi

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Ports aggregates the driving ports served over HTTP.
// Recommend and Search are required; the others disable their routes when nil.
type Ports struct {
	Recommend driving.RecommendationService
	Search    driving.SearchService
	Assistant driving.AssistantService
	Status    driving.StatusService
	Manifest  driving.ManifestService
	Rebuild   driving.RebuildService
	Cache     driving.CacheService
	Scheduler driving.Scheduler
}

// ErrMissingPorts is returned when a required port is not provided.
var ErrMissingPorts = errors.New("httpapi: recommend and search services are required")

// Options tune the HTTP server.
type Options struct {
	// AppName is reported by the health endpoint.
	AppName string

	// Version is reported by the health endpoint.
	Version string

	// RateLimit caps requests per client IP and minute on the public endpoints.
	// Zero disables limiting.
	RateLimit int

	// RequestTimeout bounds read and write of one request.
	RequestTimeout time.Duration
}

// Server is the HTTP transport.
type Server struct {
	app *fiber.App
}

// NewServer builds the fiber application and registers the routes.
func NewServer(ports Ports, opts Options) (*Server, error) {
	if ports.Recommend == nil || ports.Search == nil {
		return nil, ErrMissingPorts
	}
	if opts.AppName == "" {
		opts.AppName = "smartmarket"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ReadTimeout:  opts.RequestTimeout,
		WriteTimeout: opts.RequestTimeout,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Stream: os.Stderr,
		Next: func(fiber.Ctx) bool {
			return !logger.IsVerbose()
		},
	}))

	api := app.Group("/api/v1")
	if opts.RateLimit > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: time.Minute,
			Next:       isOperatorRoute,
			LimitReached: func(fiber.Ctx) error {
				return fiber.ErrTooManyRequests
			},
		}))
	}
	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     opts.AppName,
			"version": opts.Version,
		})
	})

	NewRecommendHandler(ports.Recommend).Register(api)
	NewSearchHandler(ports.Search).Register(api)
	if ports.Assistant != nil {
		NewAssistantHandler(ports.Assistant).Register(api)
	}
	NewAdminHandler(ports).Register(api)

	return &Server{app: app}, nil
}

// isOperatorRoute reports whether a request bypasses the rate limit.
func isOperatorRoute(c fiber.Ctx) bool {
	p := c.Path()
	return p == "/api/v1/health" || strings.HasPrefix(p, "/api/v1/ml/")
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	logger.Info("http: listening on %s", addr)
	return s.app.Listen(addr, fiber.ListenConfig{
		GracefulContext:       ctx,
		ShutdownTimeout:       10 * time.Second,
		DisableStartupMessage: true,
	})
}
