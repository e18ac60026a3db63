package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tixmarket-backend/api/controllers"
	bookingcontrollers "github.com/angelmondragon/tixmarket-backend/api/controllers/bookings"
	"github.com/angelmondragon/tixmarket-backend/api/middleware"
	"github.com/angelmondragon/tixmarket-backend/internal/bookings"
	"github.com/angelmondragon/tixmarket-backend/internal/notifications"
	"github.com/angelmondragon/tixmarket-backend/internal/referrals"
	"github.com/angelmondragon/tixmarket-backend/pkg/config"
	"github.com/angelmondragon/tixmarket-backend/pkg/db"
	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	bookingService bookings.Service,
	notificationsService notifications.Service,
	referralsService referrals.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// A nil client must stay a nil interface or the middleware would call through it.
	var (
		idemStore redis.IdempotencyStore
		limiter   redis.RateLimiter
	)
	readiness := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		idemStore = redisClient
		limiter = redisClient
		readiness["redis"] = redisClient
	}

	idempotent := middleware.Idempotency(idemStore, cfg.Eventing.IdempotencyTTL, logg)
	bookingLimit := middleware.UserRateLimit(middleware.RateLimitPolicy{
		Name:   "booking_create",
		Window: cfg.RateLimit.BookingWindow,
		Limit:  cfg.RateLimit.BookingLimit,
	}, limiter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", bookingcontrollers.List(bookingService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleBuyer), bookingLimit, idempotent).
				Post("/", bookingcontrollers.Create(bookingService, logg))
			r.Get("/{bookingId}", bookingcontrollers.Detail(bookingService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleBuyer), idempotent).
				Post("/{bookingId}/proof", bookingcontrollers.SubmitProof(bookingService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleSeller), idempotent).
				Post("/{bookingId}/status", bookingcontrollers.UpdateStatus(bookingService, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSeller))
			r.Get("/stats", bookingcontrollers.SellerStats(bookingService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/operator", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleOperator))
			r.With(idempotent).Post("/referrals", controllers.RewardReferral(referralsService, logg))
		})
	})

	return r
}
