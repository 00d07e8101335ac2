package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Paths served by the streamable HTTP transport.
const (
	EndpointPath = "/mcp"
	HealthPath   = "/healthz"
)

const instructions = `SmartMarket product intelligence.
Use "search" to find catalog products from a free-text query, "recommend" to
find products similar to a product id, and "ask" for store policies (returns,
shipping, sizes). Read smartmarket://status before relying on results.`

// Server exposes the retrieval engines as MCP tools and resources.
type Server struct {
	ports *Ports
	opts  options
	sdk   *mcp.Server
}

type options struct {
	version         string
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*options)

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

// WithShutdownTimeout bounds how long RunHTTP waits for open sessions.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// NewServer validates ports and registers every tool and resource.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	o := options{version: "dev", shutdownTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		ports: ports,
		opts:  o,
		sdk: mcp.NewServer(
			&mcp.Implementation{Name: "smartmarket", Version: o.version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Version returns the version announced to clients.
func (s *Server) Version() string {
	return s.opts.version
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("mcp: serving %s over stdio", s.opts.version)
	return s.sdk.Run(ctx, &mcp.StdioTransport{})
}

// Handler routes the streamable MCP endpoint and a health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.sdk
	}, nil))
	mux.HandleFunc("GET "+HealthPath, s.health)
	return mux
}

// health answers 200 while the retrieval core reports healthy. Without a
// status port it only confirms the process is up.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"version": s.opts.version, "healthy": true}
	code := http.StatusOK

	if s.ports.Status != nil {
		st, err := s.ports.Status.Status(r.Context())
		switch {
		case err != nil:
			body["healthy"] = false
			body["error"] = err.Error()
			code = http.StatusServiceUnavailable
		case !st.Healthy:
			body["healthy"] = false
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("mcp: writing health: %v", err)
	}
}

// RunHTTP serves Handler on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("mcp: listening on %s%s", addr, EndpointPath)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("mcp: shutdown: %v", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
