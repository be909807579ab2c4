package identityguard

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/identity-guard/internal/cache"
	"github.com/magabrotheeeer/identity-guard/internal/config"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/account/invoices"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/account/show"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/account/update"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/health"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/party/create"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/party/search"
	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/identity-guard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/identity-guard/internal/lib/jwt"
	contactsservice "github.com/magabrotheeeer/identity-guard/internal/services/contacts"
	identityservice "github.com/magabrotheeeer/identity-guard/internal/services/identity"
	subservice "github.com/magabrotheeeer/identity-guard/internal/services/subscription"
	"github.com/magabrotheeeer/identity-guard/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage, cacheRedis *cache.Cache, jwtMaker jwt.Maker,
	identityService *identityservice.Service, subscriptionService *subservice.Service,
	contactsService *contactsservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, identityService).ServeHTTP)
		r.Post("/login", login.New(logger, identityService).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Профиль доступен по JWT даже при неактивной подписке,
		// чтобы владелец мог видеть и править свои данные. Истечение
		// пробного периода применяется и здесь: любое
		// аутентифицированное обращение переводит просроченный trial
		// в pending.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.TrialExpiryMiddleware(logger, subscriptionService))
			r.Get("/account/profile", show.New(logger, identityService, cacheRedis).ServeHTTP)
			r.Put("/account/profile", update.New(logger, identityService, cacheRedis).ServeHTTP)
		})

		// Группа с проверкой статуса подписки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.SubscriptionStatusMiddleware(logger, subscriptionService))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/account/invoices", invoices.New(logger, subscriptionService).ServeHTTP)
			r.Post("/parties", create.New(logger, contactsService).ServeHTTP)
			r.Get("/parties/search", search.New(logger, contactsService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, subscriptionService, cfg.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
