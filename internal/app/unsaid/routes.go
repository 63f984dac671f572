// Package unsaid предоставляет маршруты и запуск основного приложения.
package unsaid

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	authgoogle "github.com/unsaidapp/unsaid-backend/internal/http/handlers/auth/google"
	confessionlist "github.com/unsaidapp/unsaid-backend/internal/http/handlers/confession/list"
	confessionstatus "github.com/unsaidapp/unsaid-backend/internal/http/handlers/confession/status"
	confessionsubmit "github.com/unsaidapp/unsaid-backend/internal/http/handlers/confession/submit"
	devenable "github.com/unsaidapp/unsaid-backend/internal/http/handlers/dev/enable"
	"github.com/unsaidapp/unsaid-backend/internal/http/handlers/health"
	ordercreate "github.com/unsaidapp/unsaid-backend/internal/http/handlers/order/create"
	paymentwebhook "github.com/unsaidapp/unsaid-backend/internal/http/handlers/payment/webhook"
	subscriptionconfirm "github.com/unsaidapp/unsaid-backend/internal/http/handlers/subscription/confirm"
	userstatus "github.com/unsaidapp/unsaid-backend/internal/http/handlers/user/status"
	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/lib/jwt"
	confessionservice "github.com/unsaidapp/unsaid-backend/internal/services/confession"
	identityservice "github.com/unsaidapp/unsaid-backend/internal/services/identity"
	paymentservice "github.com/unsaidapp/unsaid-backend/internal/services/payment"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, maker jwt.Maker,
	identityService *identityservice.Service,
	confessionService *confessionservice.Service,
	paymentService *paymentservice.Service,
	webhookSecret string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/google", authgoogle.New(logger, identityService).ServeHTTP)
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentService, webhookSecret).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Post("/orders", ordercreate.New(logger, paymentService).ServeHTTP)
			r.Post("/subscriptions/confirm", subscriptionconfirm.New(logger, paymentService).ServeHTTP)
			r.Get("/confessions", confessionlist.New(logger, confessionService).ServeHTTP)
			r.Get("/confessions/{submission_id}", confessionstatus.New(logger, confessionService).ServeHTTP)
			r.Get("/user/status", userstatus.New(logger, confessionService).ServeHTTP)
			r.Post("/dev/enable", devenable.New(logger, confessionService).ServeHTTP)

			// Приём сообщений дополнительно ограничен по частоте
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(logger))
				r.Post("/confessions", confessionsubmit.New(logger, confessionService).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New().ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
