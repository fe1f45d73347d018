package server

import (
	"net/http"
	"time"

	"crm-backend/internal/handler"
	"crm-backend/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups the route sets mounted by NewRouter. Auth is only
// mounted when the service issues its own sessions.
type Handlers struct {
	Health    handler.HealthHandler
	Auth      *handler.AuthHandler
	Customers handler.CustomerHandler
	Visits    handler.VisitHandler
	Tasks     handler.TaskHandler
	Profile   handler.ProfileHandler
	Dashboard handler.DashboardHandler
	Analytics handler.AnalyticsHandler
	Admin     handler.AdminHandler
}

// RouterOptions carries the pieces of NewRouter that vary by deployment.
type RouterOptions struct {
	Verifier TokenVerifier
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	// UploadDir is served under /uploads when photos are kept on disk.
	UploadDir string
}

// NewRouter wires HTTP routes and middleware.
func NewRouter(opts RouterOptions, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(opts.Logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(200, 1*time.Minute))

	h.Health.RegisterRoutes(r)
	if h.Auth != nil {
		h.Auth.RegisterRoutes(r)
	}
	if opts.Metrics != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(opts.Verifier))
		h.Customers.RegisterRoutes(pr)
		h.Visits.RegisterRoutes(pr)
		h.Tasks.RegisterRoutes(pr)
		h.Profile.RegisterRoutes(pr)
		h.Dashboard.RegisterRoutes(pr)
		h.Analytics.RegisterRoutes(pr)
		h.Admin.RegisterRoutes(pr)
	})

	return r
}
