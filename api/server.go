// Package api exposes the materials database and the prediction service
// over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
	"github.com/tengml/tengml/predictor"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	// Sources is reloaded by POST /api/reload.
	Sources materials.Sources

	// PageSize is the default materials page size.
	PageSize int
}

// Server routes HTTP requests to a predictor.Service.
type Server struct {
	svc    *predictor.Service
	opts   Options
	router chi.Router
	logger log.Logger
}

// NewServer builds the router for svc.
func NewServer(svc *predictor.Service, opts Options) *Server {
	if opts.PageSize < 1 {
		opts.PageSize = materials.DefaultPerPage
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		router: chi.NewRouter(),
		logger: log.GetLoggerWithName("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(s.recoverer)
	s.router.Use(middleware.RequestSize(maxBodyBytes))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/materials", s.handleMaterials)
		r.Get("/materials.xlsx", s.handleMaterialsXLSX)
		r.Get("/materials/{id}", s.handleMaterial)
		r.Get("/stats", s.handleStats)

		r.Get("/models", s.handleModels)
		r.Get("/models/{metric}/parity.png", s.handleParity)

		r.With(middleware.AllowContentType("application/json")).Post("/predict", s.handlePredict)
		r.Get("/presets/camx", s.handlePreset)
		r.Post("/reload", s.handleReload)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.logger.Debug("request served",
			log.RequestIDKey, middleware.GetReqID(r.Context()),
			log.MethodKey, r.Method,
			log.RouteKey, route,
			log.StatusKey, ww.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}

// recoverer turns a handler panic into a 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := errors.SafeExecute(r.Method+" "+r.URL.Path, func() error {
			next.ServeHTTP(w, r)
			return nil
		})
		if err != nil {
			s.logger.Error("handler panicked", err, log.RequestIDKey, middleware.GetReqID(r.Context()))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		}
	})
}
