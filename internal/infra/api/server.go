package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mindfulbot/internal/domain/ports/adapter"
	"mindfulbot/internal/infra/i18n"
	"mindfulbot/internal/infra/logging"
	"mindfulbot/internal/usecase"
)

type Options struct {
	RequestTimeout time.Duration
	// AllowedOrigins lists websocket origins; empty means same origin only.
	AllowedOrigins []string
	Metrics        bool
}

// Server exposes the chat widget page and the session API.
type Server struct {
	chat   usecase.ChatUseCase
	events adapter.EventSubscriber
	auth   *AuthManager
	tr     *i18n.Translator
	opts   Options
	log    *zerolog.Logger

	httpSrv *http.Server
	// quit tells hijacked websocket streams to close; Shutdown does not track them
	quit     chan struct{}
	quitOnce sync.Once
}

func NewServer(
	chat usecase.ChatUseCase,
	events adapter.EventSubscriber,
	auth *AuthManager,
	tr *i18n.Translator,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		chat:   chat,
		events: events,
		auth:   auth,
		tr:     tr,
		opts:   opts,
		log:    logger,
		quit:   make(chan struct{}),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/", s.handlePage)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	timeout := Timeout(s.opts.RequestTimeout)
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.With(timeout).Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/events", s.handleEvents)
			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/messages", s.handlePostMessage)
			})
		})
	})
	return r
}

// ListenAndServe blocks until the server stops; a clean Shutdown returns nil.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// requireSession rejects requests whose token does not belong to {id}.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Subject != id {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := logging.WithSessID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
