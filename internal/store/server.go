package store

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ServerOptions configure the identity store HTTP server.
type ServerOptions struct {
	Host   string
	Port   int
	Token  string // expected bearer token; empty disables auth
	Tenant string // expected X-Tenant-ID; empty disables the check
}

// Server exposes the identity store over HTTP.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer wires the handler into a chi router with the standard
// middleware stack.
func NewServer(service *Service, extractor Extractor, opts ServerOptions) *Server {
	r := chi.NewRouter()
	handler := NewHandler(service, extractor)

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(CORS())

	// Health check (no auth required).
	r.Get("/api/v1/health", handler.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAuth(opts.Token, opts.Tenant))

		r.Post("/register", handler.Register)
		r.Post("/register/image", handler.RegisterImage)
		r.Post("/verify", handler.Verify)
		r.Post("/verify/image", handler.VerifyImage)
		r.Get("/events", handler.Events)
	})

	return &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	log.Printf("Starting identity store on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down identity store...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
