package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acidbutter96/mel-davis-store/api/controllers"
	webhookcontrollers "github.com/acidbutter96/mel-davis-store/api/controllers/webhooks"
	"github.com/acidbutter96/mel-davis-store/api/middleware"
	"github.com/acidbutter96/mel-davis-store/internal/notifications"
	"github.com/acidbutter96/mel-davis-store/internal/purchases"
	"github.com/acidbutter96/mel-davis-store/internal/reconcile"
	"github.com/acidbutter96/mel-davis-store/pkg/config"
	"github.com/acidbutter96/mel-davis-store/pkg/db"
	"github.com/acidbutter96/mel-davis-store/pkg/logger"
	"github.com/acidbutter96/mel-davis-store/pkg/metrics"
	"github.com/acidbutter96/mel-davis-store/pkg/redis"
	"github.com/acidbutter96/mel-davis-store/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	webhookService webhookcontrollers.StripeWebhookService,
	webhookGuard *reconcile.IdempotencyGuard,
	notifier webhookcontrollers.Notifier,
	webhookMetrics *metrics.WebhookMetrics,
	metricsHandler http.Handler,
	purchasesService purchases.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	readinessDeps := map[string]controllers.DependencyPinger{
		"database": dbP,
		"redis":    redisClient,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if redisClient != nil {
			policy := middleware.NewRateLimitPolicy("stripe-webhook", cfg.Webhook.RateLimitWindow, cfg.Webhook.RateLimitPerIP)
			r.Use(middleware.RateLimit(policy, redisClient, logg))
		}
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookService, stripeClient, webhookGuard, notifier, webhookMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/me", func(r chi.Router) {
			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", controllers.ListMyPurchases(purchasesService, logg))
				r.Get("/{purchaseId}", controllers.GetMyPurchase(purchasesService, logg))
			})
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(purchasesService, logg))
			r.Get("/{purchaseId}", controllers.AdminGetOrder(purchasesService, logg))
		})
	})

	return r
}
