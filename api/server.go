// Package api exposes the kernel over HTTP. One handler serves a JSON REST
// surface routed with gorilla/mux, the Connect service
// lifeline.v1.ConversationService, a health probe and, when configured, the
// Prometheus scrape endpoint.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tailored-agentic-units/lifeline/kernel"
	"github.com/tailored-agentic-units/lifeline/observability"
)

// Option configures a Server.
type Option func(*Server)

// WithObserver sets the observer that receives request events.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithRateLimit sets the per-session submit rate in messages per second and
// the burst size. A rate of zero or less disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) { s.limiter = newLimiterPool(rps, burst) }
}

// Server routes HTTP and Connect traffic to a Kernel.
type Server struct {
	kernel   *kernel.Kernel
	observer observability.Observer
	metrics  http.Handler
	limiter  *limiterPool
	router   *mux.Router
}

// NewServer creates a Server over k. Rate limiting defaults to
// kernel.DefaultServerConfig.
func NewServer(k *kernel.Kernel, opts ...Option) *Server {
	defaults := kernel.DefaultServerConfig()

	s := &Server{
		kernel:   k,
		observer: observability.NoOpObserver{},
		limiter:  newLimiterPool(defaults.RateLimit, defaults.RateBurst),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	// Routes stay on the root router so a method mismatch answers 405.
	r.HandleFunc("/api/sessions/{id}/messages", s.submitMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/messages", s.transcript).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/handoff", s.requestHuman).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/handoff", s.closeHandoff).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/operator-messages", s.operatorMessage).Methods(http.MethodPost)

	r.HandleFunc("/api/handoffs", s.handoffs).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	s.registerRPC(r)

	return r
}

// observe emits EventRequest after each routed request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		level := observability.LevelInfo
		switch {
		case rec.status >= http.StatusInternalServerError:
			level = observability.LevelError
		case rec.status >= http.StatusBadRequest:
			level = observability.LevelWarning
		}

		s.emit(r.Context(), level, map[string]any{
			"method":                   r.Method,
			"route":                    route,
			"status":                   rec.status,
			observability.DataOutcome:  strconv.Itoa(rec.status),
			observability.DataDuration: time.Since(start).Milliseconds(),
		})
	})
}

// allow applies the submit limit. Blank ids pass through so the kernel
// reports them as validation errors.
func (s *Server) allow(id string) bool {
	return strings.TrimSpace(id) == "" || s.limiter.Allow(id)
}

func (s *Server) emit(ctx context.Context, level observability.Level, data map[string]any) {
	s.observer.OnEvent(ctx, observability.NewEvent(EventRequest, level, "api", data))
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
