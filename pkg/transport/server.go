package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/outshift/triagent/pkg/config"
	"github.com/outshift/triagent/pkg/observability"
	"github.com/outshift/triagent/pkg/task"
	"github.com/outshift/triagent/pkg/tbac"
)

// Server binds the dispatcher and the auxiliary endpoints to an HTTP
// listener.
type Server struct {
	cfg    config.ServerConfig
	router chi.Router
}

// NewServer assembles the route table.
func NewServer(
	cfg config.ServerConfig,
	dispatcher *Dispatcher,
	store *task.Store,
	gate *tbac.Gate,
	obs *observability.Manager,
) *Server {
	h := &handlers{
		store: store,
		gate:  gate,
		info:  CardInfo{PublicURL: cfg.PublicURL},
	}

	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Post("/", dispatcher.ServeHTTP)
	r.Get("/.well-known/agent-card.json", h.agentCard)
	r.Get("/health", h.health)
	r.Get("/docs", h.docs)

	if obs != nil && obs.MetricsEnabled() {
		r.Get("/metrics", obs.MetricsHandler().ServeHTTP)
	}

	return &Server{cfg: cfg, router: r}
}

// Handler exposes the assembled routes, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting A2A triage service", "addr", addr)
		slog.Info("Agent card available", "path", "/.well-known/agent-card.json")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
