package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caskfs/caskfs/internal/api/auth"
	"github.com/caskfs/caskfs/internal/api/handlers"
	apiMiddleware "github.com/caskfs/caskfs/internal/api/middleware"
	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/controlplane/store"
	"github.com/caskfs/caskfs/pkg/metrics"
	"github.com/caskfs/caskfs/pkg/notify"
	"github.com/caskfs/caskfs/pkg/vault"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (404 when disabled)
//   - POST /api/v1/auth/login - User authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET /api/v1/auth/me - Current user info
//   - GET /api/v1/files - File listing
//   - POST /api/v1/files/{name} - Upload a new version
//   - GET /api/v1/files/{name} - Version history
//   - GET /api/v1/files/{name}/content - Download (latest or ?version=N)
//   - GET /api/v1/files/{name}/verify - Integrity verification
//   - /api/v1/locks/* - Lock management (listing and force-release admin only)
//   - GET /api/v1/events - Upload notification stream (SSE)
//   - PUT /api/v1/users/me/password - Change own password
//   - /api/v1/users/* - User management (admin only)
func NewRouter(coordinator *vault.Coordinator, broadcaster *notify.Broadcaster, jwtService *auth.JWTService, userStore store.UserStore, maxUploadSize int64) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(coordinator)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Prometheus metrics - serves 404 when metrics are disabled
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(userStore, jwtService)
	userHandler := handlers.NewUserHandler(userStore)
	filesHandler := handlers.NewFilesHandler(coordinator, maxUploadSize)
	locksHandler := handlers.NewLocksHandler(coordinator)
	eventsHandler := handlers.NewEventsHandler(broadcaster)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Event stream - authenticated, long-lived, so no request timeout
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))
			r.Get("/events", eventsHandler.Stream)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			// Auth routes - mostly unauthenticated
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)

				r.Group(func(r chi.Router) {
					r.Use(apiMiddleware.JWTAuth(jwtService))
					r.Get("/me", authHandler.Me)
				})
			})

			// Protected routes - require authentication
			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))

				// File versioning
				r.Route("/files", func(r chi.Router) {
					r.Get("/", filesHandler.List)
					r.Post("/{name}", filesHandler.Upload)
					r.Get("/{name}", filesHandler.Get)
					r.Get("/{name}/content", filesHandler.Download)
					r.Get("/{name}/verify", filesHandler.Verify)
				})

				// Lock management
				r.Route("/locks", func(r chi.Router) {
					r.Get("/{name}", locksHandler.Get)
					r.Post("/{name}", locksHandler.Acquire)
					r.Delete("/{name}", locksHandler.Release)

					// Administrative operations
					r.Group(func(r chi.Router) {
						r.Use(apiMiddleware.RequireAdmin())
						r.Get("/", locksHandler.List)
						r.Delete("/{name}/force", locksHandler.ForceRelease)
					})
				})

				// Password change for the current user
				r.Put("/users/me/password", userHandler.ChangeOwnPassword)

				// User management (admin only)
				r.Route("/users", func(r chi.Router) {
					r.Use(apiMiddleware.RequireAdmin())

					r.Post("/", userHandler.Create)
					r.Get("/", userHandler.List)
					r.Get("/{username}", userHandler.Get)
					r.Put("/{username}", userHandler.Update)
					r.Delete("/{username}", userHandler.Delete)
					r.Put("/{username}/password", userHandler.ResetPassword)
				})
			})
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyClientIP, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDuration, duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
