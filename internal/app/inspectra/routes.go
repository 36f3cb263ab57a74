// Package inspectra собирает API-процесс: REST-маршруты, realtime-шлюз,
// метрики и документацию.
package inspectra

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/inspectra/internal/http/handlers/chat/createroom"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/chat/guest"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/chat/guestsession"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/chat/listrooms"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/entitlement/check"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/entitlement/usage"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/health"
	messagelist "github.com/magabrotheeeer/inspectra/internal/http/handlers/message/list"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/message/seen"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/message/send"
	plancreate "github.com/magabrotheeeer/inspectra/internal/http/handlers/plan/create"
	planlist "github.com/magabrotheeeer/inspectra/internal/http/handlers/plan/list"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/adminlist"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/history"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/initiate"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/renew"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/trial"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/verify"
	"github.com/magabrotheeeer/inspectra/internal/http/handlers/subscription/webhook"
	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/models"
	"github.com/magabrotheeeer/inspectra/internal/realtime"
	chatservice "github.com/magabrotheeeer/inspectra/internal/services/chat"
	entitlementservice "github.com/magabrotheeeer/inspectra/internal/services/entitlement"
	subservice "github.com/magabrotheeeer/inspectra/internal/services/subscription"
)

// Deps — зависимости, из которых строятся маршруты.
type Deps struct {
	Logger       *slog.Logger
	Tokens       middlewarectx.TokenParser
	Limiter      *middlewarectx.RateLimiter
	Chat         *chatservice.Service
	Subscription *subservice.Service
	Entitlement  *entitlementservice.Service
	Hub          *realtime.Hub
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger).ServeHTTP)

		// Открытые конечные точки чата: гости не имеют учётной записи.
		r.Post("/chat/rooms", createroom.New(logger, d.Chat).ServeHTTP)
		r.Get("/chat/guests/{id}", guest.New(logger, d.Chat).ServeHTTP)
		r.Post("/chat/guest/session", guestsession.New(logger, d.Chat).ServeHTTP)
		r.Post("/messages", send.New(logger, d.Hub).ServeHTTP)
		r.Get("/messages/{roomID}", messagelist.New(logger, d.Chat).ServeHTTP)
		r.Patch("/messages/seen", seen.New(logger, d.Hub).ServeHTTP)

		r.Get("/plans", planlist.New(logger, d.Subscription).ServeHTTP)
		r.Post("/subscriptions/initiate", initiate.New(logger, d.Subscription).ServeHTTP)
		// Webhook проверяет подпись verif-hash сам.
		r.Post("/subscriptions/webhook", webhook.New(logger, d.Subscription).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, logger))

			r.Get("/chat/rooms/client", listrooms.New(logger, d.Chat, models.RoomRoleClient).ServeHTTP)
			r.With(middlewarectx.RequireRole(logger,
				models.RoleRealtor, models.RoleAgency, models.RolePropertyOwner, models.RoleAdmin,
			)).Get("/chat/rooms/realtor", listrooms.New(logger, d.Chat, models.RoomRoleRealtor).ServeHTTP)

			// Счётчики квот меняет только сервис объявлений при записи и удалении объявления.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(logger, models.RoleService, models.RoleAdmin))
				r.Post("/entitlements/{action}/charge", usage.NewCharge(logger, d.Entitlement).ServeHTTP)
				r.Post("/entitlements/{action}/release", usage.NewRelease(logger, d.Entitlement).ServeHTTP)
			})

			// Подписки и квоты доступны только зарегистрированным пользователям.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireUser(logger))

				r.Post("/subscriptions/renew", renew.New(logger, d.Subscription).ServeHTTP)
				r.Get("/subscriptions/verify", verify.New(logger, d.Subscription).ServeHTTP)
				r.Get("/subscriptions/history", history.New(logger, d.Subscription).ServeHTTP)
				r.Patch("/subscriptions/{id}/cancel", cancel.New(logger, d.Subscription).ServeHTTP)
				r.Post("/subscriptions/trial", trial.New(logger, d.Subscription).ServeHTTP)

				r.Get("/entitlements/{action}", check.New(logger, d.Entitlement).ServeHTTP)

				r.Group(func(r chi.Router) {
					r.Use(middlewarectx.RequireRole(logger, models.RoleAdmin))
					r.Post("/plans", plancreate.New(logger, d.Subscription).ServeHTTP)
					r.Get("/subscriptions/admin/all", adminlist.New(logger, d.Subscription).ServeHTTP)
				})
			})
		})
	})

	r.Handle("/ws", d.Hub)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
