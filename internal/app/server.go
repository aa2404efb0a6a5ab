package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Discovera/internal/api/handlers"
	"github.com/markdave123-py/Discovera/internal/config"
	"github.com/markdave123-py/Discovera/internal/core"
	"github.com/markdave123-py/Discovera/internal/core/discovery"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, pipeline *discovery.Pipeline, jobs core.JobStore, events *discovery.CaseEvents, obj core.ObjectClient) *Server {
	discoveryHandler := handlers.NewDiscoveryHandler(pipeline, jobs, events, obj, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(60 * time.Second))
			timed.Post("/cases/{case_id}/discovery/process", discoveryHandler.ProcessProduction)
			timed.Post("/cases/{case_id}/discovery/reprocess", discoveryHandler.ReprocessProduction)
			timed.Get("/discovery/status/{processing_id}", discoveryHandler.Status)
			timed.Post("/discovery/{processing_id}/cancel", discoveryHandler.Cancel)
			timed.Get("/cases/{case_id}/productions/{production_batch}/{file_name}", discoveryHandler.DownloadProduction)
			timed.Delete("/cases/{case_id}/productions/{production_batch}/{file_name}", discoveryHandler.DeleteProduction)
		})

		// SSE stream stays open past the request timeout window.
		api.Get("/cases/{case_id}/discovery/events", discoveryHandler.Events)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
