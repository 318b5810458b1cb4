package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jwcutler/passbot/internal/auth"
	"github.com/jwcutler/passbot/internal/config"
	"github.com/jwcutler/passbot/internal/health"
	"github.com/jwcutler/passbot/internal/metrics"
	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/tracker"
)

// Config holds what the HTTP surface needs beyond its collaborators.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool

	// Observer is used when a request omits lat/lon. Nil requires them.
	Observer     *orbit.Observer
	DaysAhead    int
	MinElevation float64
	Satellites   []config.SatelliteConfig

	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready health.Check
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, resolver tracker.Resolver, predictor *tracker.Predictor, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := &handlers{
		cfg:       cfg,
		resolver:  resolver,
		predictor: predictor,
		logger:    logger.With("component", "api"),
	}

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(cfg.Ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/passes", h.passes)
	mux.HandleFunc("GET /api/v1/satellites/passes", h.satellitePasses)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Pass searches over many satellites can take a while.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", clientIP(r, trustProxy),
			)
		})
	}
}

// clientIP returns the caller's address. Forwarding headers are honoured
// only behind a trusted proxy, and then the leftmost X-Forwarded-For entry
// wins over X-Real-IP.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
