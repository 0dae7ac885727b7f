// Package api exposes an entry session over a small local HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/voidshard/cashster/pkg/entry"
	"github.com/voidshard/cashster/pkg/metrics"
	"go.uber.org/zap"
)

type Server struct {
	session *entry.Session
	logger  *zap.Logger
	router  chi.Router
}

type options struct {
	origins []string
	metrics *metrics.Collector
}

type Option func(*options)

// WithCORS allows browser pages from origins to call the API.
func WithCORS(origins ...string) Option {
	return func(o *options) { o.origins = origins }
}

// WithMetrics records request metrics on c and serves them on /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

func New(session *entry.Session, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	s := &Server{session: session, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Logger(logger))
	if o.metrics != nil {
		r.Use(Metrics(o.metrics))
	}
	if len(o.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.origins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	if o.metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.metrics.Handler())
	}
	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/places", s.getPlaces)
		r.Post("/places/select", s.selectPlace)
		r.Delete("/places/{index}", s.forgetPlace)
		r.Post("/keypad", s.keypad)
		r.Post("/confirm", s.confirm)
		r.Post("/sync", s.sync)
		r.Get("/status", s.status)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(sctx)
	if serr := <-errs; !errors.Is(serr, http.ErrServerClosed) && err == nil {
		err = serr
	}
	return err
}
