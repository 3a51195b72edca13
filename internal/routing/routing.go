package routing

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rdsimon13/isayitforward/internal/auth"
	"github.com/rdsimon13/isayitforward/internal/handlers"
	"github.com/rdsimon13/isayitforward/internal/middleware"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger

	// RateLimit caps requests per client IP per minute. Zero disables
	// rate limiting, which tests rely on.
	RateLimit int
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Blocking
	mux.HandleFunc("POST /api/blocks", h.HandleBlockCreate)
	mux.HandleFunc("DELETE /api/blocks/{id}", h.HandleBlockDelete)
	mux.HandleFunc("GET /api/blocks", h.HandleBlockList)

	// Reports and the moderation workflow
	mux.HandleFunc("POST /api/reports", h.HandleReportSubmit)
	mux.HandleFunc("GET /api/reports", h.HandleReportList)
	mux.HandleFunc("GET /api/reports/{id}", h.HandleReportGet)
	mux.HandleFunc("POST /api/reports/{id}/review", h.HandleReportReview)
	mux.HandleFunc("POST /api/reports/{id}/resolve", h.HandleReportResolve)
	mux.HandleFunc("POST /api/reports/{id}/dismiss", h.HandleReportDismiss)
	mux.HandleFunc("GET /api/audit", h.HandleAuditLog)

	// Messages
	mux.HandleFunc("POST /api/sifs", h.HandleSIFCreate)
	mux.HandleFunc("GET /api/sifs", h.HandleSIFList)
	mux.HandleFunc("GET /api/sifs/{id}", h.HandleSIFGet)

	// Operational endpoints bypass auth
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Resolve the acting user from the gateway-set identity headers
	handler = auth.Middleware(handler)

	// 3. Apply rate limiting
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		handler = middleware.RateLimitMiddleware(limiter)(handler)
	}

	// 4. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 5. Apply logging middleware
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	// 6. Trace spans for every request (outermost - wraps everything)
	return otelhttp.NewHandler(handler, "isayitforward")
}
