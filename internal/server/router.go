package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inout-backend/internal/config"
	"inout-backend/internal/domain"
	"inout-backend/internal/handler"
)

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config,
	logger *slog.Logger,
	health handler.HealthHandler,
	auth handler.AuthHandler,
	users handler.UserHandler,
	locations handler.LocationHandler,
	attendance handler.AttendanceHandler,
	history handler.HistoryHandler,
	tenant handler.TenantHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(200, 1*time.Minute))

	health.RegisterRoutes(r)
	auth.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(cfg.JWTSecret))
		// employee-level (employee/admin)
		pr.Group(func(er chi.Router) {
			er.Use(RequireRole(domain.RoleAdmin, domain.RoleEmployee))
			users.RegisterRoutes(er)
			attendance.RegisterRoutes(er)
			history.RegisterRoutes(er)
			tenant.RegisterRoutes(er)
		})
		// admin-level
		pr.Group(func(ar chi.Router) {
			ar.Use(RequireRole(domain.RoleAdmin))
			users.RegisterAdminRoutes(ar)
			locations.RegisterAdminRoutes(ar)
			history.RegisterAdminRoutes(ar)
			tenant.RegisterAdminRoutes(ar)
		})
	})

	return r
}
