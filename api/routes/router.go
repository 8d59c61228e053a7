package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmlabor-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/farmlabor-backend/api/controllers/orders"
	transportcontrollers "github.com/angelmondragon/farmlabor-backend/api/controllers/transport"
	workercontrollers "github.com/angelmondragon/farmlabor-backend/api/controllers/workers"
	"github.com/angelmondragon/farmlabor-backend/api/middleware"
	"github.com/angelmondragon/farmlabor-backend/internal/assignment"
	"github.com/angelmondragon/farmlabor-backend/internal/earnings"
	"github.com/angelmondragon/farmlabor-backend/internal/transport"
	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	"github.com/angelmondragon/farmlabor-backend/pkg/db"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/farmlabor-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer touches.
type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API routes call into.
type Deps struct {
	DB          db.Pinger
	Redis       redisStore
	Assignments assignment.Service
	Transport   transport.Service
	Earnings    earnings.Repository
	// MetricsHandler serves /metrics; promhttp.Handler when nil.
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	redisClient := deps.Redis
	assignmentService := deps.Assignments
	transportService := deps.Transport

	decisionPolicy := middleware.NewRateLimitPolicy(
		"decision",
		cfg.RateLimit.DecisionWindow,
		cfg.RateLimit.DecisionIPLimit,
		cfg.RateLimit.DecisionUserLimit,
	)
	decisionLimit := middleware.RateLimit(decisionPolicy, redisClient, logg)

	adminOnly := middleware.RequireRole(logg, enums.UserRoleAdmin)
	candidates := middleware.RequireRole(logg, enums.UserRoleWorker, enums.UserRoleDriver)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "postgres", Pinger: deps.DB},
			controllers.Dependency{Name: "redis", Pinger: redisClient},
		))
	})
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(assignmentService, logg))
			r.Get("/reassignment", ordercontrollers.Reassignment(assignmentService, logg))
			r.With(adminOnly).Post("/auto-assign", ordercontrollers.AutoAssign(assignmentService, logg))
			r.With(adminOnly).Post("/assign", ordercontrollers.ManualAssign(assignmentService, logg))
			r.With(decisionLimit, middleware.RequireRole(logg, enums.UserRoleWorker, enums.UserRoleDriver, enums.UserRoleAdmin)).
				Post("/decision", ordercontrollers.Decision(assignmentService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleFarmer, enums.UserRoleAdmin)).
				Post("/complete", ordercontrollers.Complete(assignmentService, logg))
		})

		r.With(candidates).Get("/offers", workercontrollers.Offers(assignmentService, logg))
		r.With(candidates).Get("/earnings", workercontrollers.Earnings(deps.Earnings, logg))

		r.Route("/transport-assignments/{assignmentId}", func(r chi.Router) {
			r.Get("/", transportcontrollers.Detail(transportService, logg))
			r.With(adminOnly).Post("/auto-assign", transportcontrollers.AutoAssign(transportService, logg))
			r.With(adminOnly).Post("/assign", transportcontrollers.ManualAssign(transportService, logg))
			r.With(decisionLimit, middleware.RequireRole(logg, enums.UserRoleDriver, enums.UserRoleAdmin)).
				Post("/decision", transportcontrollers.Decision(transportService, logg))
			r.With(adminOnly).Post("/complete", transportcontrollers.Complete(transportService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(adminOnly)

		r.Get("/orders", ordercontrollers.AdminList(assignmentService, logg))
	})

	return r
}
