package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chatpulse/internal/app/server/handlers"
	"chatpulse/internal/core/services"
	"chatpulse/pkg/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	log        *slog.Logger
	mux        *http.ServeMux
	addr       string
	wsHandler  *handlers.WSHandler
	msgHandler *handlers.MessageHandler
	tokenSvc   *services.TokenService
}

func NewServer(
	log *slog.Logger,
	app string,
	addr string,
	tokenSvc *services.TokenService,
	wsHandler *handlers.WSHandler,
	msgHandler *handlers.MessageHandler,
	registry *prometheus.Registry,
) *Server {
	s := &Server{
		log:        log,
		mux:        http.NewServeMux(),
		addr:       addr,
		wsHandler:  wsHandler,
		msgHandler: msgHandler,
		tokenSvc:   tokenSvc,
	}
	s.routes(app, registry)
	return s
}

func (s *Server) routes(app string, registry *prometheus.Registry) {
	auth := middleware.AuthMiddleware(s.tokenSvc)
	logged := middleware.RequestLogger(s.log)
	traced := middleware.TracerMiddleware(app)

	protect := func(h http.HandlerFunc) http.Handler {
		return traced(logged(auth(h)))
	}

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.mux.Handle("/ws", protect(s.wsHandler.Handler))
	s.mux.Handle("GET /messages/history", protect(s.msgHandler.History))
	s.mux.Handle("GET /messages/unread", protect(s.msgHandler.Unread))
	s.mux.Handle("POST /messages", protect(s.msgHandler.Send))
	s.mux.Handle("DELETE /messages/{id}", protect(s.msgHandler.Delete))
}

// Start serves until ctx is cancelled, then drains with a short timeout.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket sessions outlive any sane value.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server - listening", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
