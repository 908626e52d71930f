// Package api exposes the NAV return calculators over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"mf-returns-service/internal/calculator"
	"mf-returns-service/internal/mfapi"
)

// Directory serves fund listings; *catalog.Catalog satisfies it.
type Directory interface {
	List(ctx context.Context, filter string) ([]mfapi.SchemeListItem, error)
	Search(ctx context.Context, q string) ([]mfapi.SchemeListItem, error)
}

type Deps struct {
	Calc      *calculator.Service
	Directory Directory
	// Pool enables the sync endpoints; nil when running without the NAV mirror.
	Pool        *pgxpool.Pool
	CORSOrigins []string
	Logger      *slog.Logger
}

type Server struct {
	calc *calculator.Service
	dir  Directory
	pool *pgxpool.Pool
	log  *slog.Logger
	r    chi.Router
	srv  *http.Server
}

func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		calc: d.Calc,
		dir:  d.Directory,
		pool: d.Pool,
		log:  log.With("component", "api"),
		r:    chi.NewRouter(),
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(s.requestLogger)
	s.r.Use(middleware.Recoverer)
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.r.Use(middleware.Timeout(60 * time.Second))

	s.routes()
	s.srv = &http.Server{
		Handler:      s.r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.log.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
