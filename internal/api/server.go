// Package api serves the task service over HTTP.
//
// Routes live under /api/tasks. Errors are reported as {"error": "..."}
// with a status derived from the error kind, and every response carries an
// X-Request-ID header.
package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khoitran3172/todo-list/internal/service"
)

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: ":3000")
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// Logger for request and lifecycle logs (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":3000",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Logger:       log.Default(),
	}
}

// Server exposes a service.Service over HTTP.
type Server struct {
	svc      *service.Service
	config   *Config
	listener net.Listener
	server   *http.Server
	handler  http.Handler
	metrics  *httpMetrics
	logger   *log.Logger
	wg       sync.WaitGroup
}

// NewServer creates a server. Call Start to begin listening, or use Handler
// directly with an existing http.Server.
func NewServer(svc *service.Service, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Addr == "" {
		config.Addr = ":3000"
	}

	s := &Server{
		svc:     svc,
		config:  config,
		logger:  config.Logger,
		metrics: newHTTPMetrics(),
	}
	s.handler = s.routes()
	return s
}

// Collectors returns the request metrics for registration.
func (s *Server) Collectors() []prometheus.Collector {
	return s.metrics.collectors()
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/dependencies", s.handleAddDependency)
	mux.HandleFunc("GET /api/tasks/{id}/dependencies", s.handleListDependencies)
	mux.HandleFunc("DELETE /api/tasks/{id}/dependencies/{dependencyId}", s.handleRemoveDependency)
	mux.HandleFunc("GET /health", s.handleHealth)

	gatherer := s.config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s.withRequestID(s.withLogging(mux))
}

// Start begins listening and serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("API server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	s.logger.Println("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()

	s.logger.Println("API server stopped")
	return nil
}

// GetAddr returns the listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}
