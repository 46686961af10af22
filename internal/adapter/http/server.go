// Package http serves the health endpoints and mounts the coverage API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Simulations wait on the RF API and the raster download, so writes get far
// more time than the health checks need.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 3 * time.Minute
	idleTimeout       = 60 * time.Second
)

// Server owns the listener for health checks, metrics and the study API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer routes /healthz, /readyz and /metrics on the server mux. api, when
// non-nil, receives everything under /api/ and /static/.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           routes(ready, api),
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		logger: logger,
	}
}

func routes(ready sharedobs.ReadinessChecker, api http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if api != nil {
		for _, prefix := range []string{"/api/", "/static/"} {
			mux.Handle(prefix, api)
		}
	}
	return mux
}

// Start blocks serving requests until Shutdown; it then returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "write_timeout", writeTimeout)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight simulations
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
