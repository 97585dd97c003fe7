package router

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Health        *handler.HealthHandler
	Products      *handler.ProductHandler
	Orders        *handler.OrderHandler
	Notifications *handler.NotificationHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, auth config.AuthConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// RequestID runs first so every later layer, including Recovery, can report it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	r.Get("/health", h.Health.Check)

	authenticate := middleware.Authenticate(auth.APIKey, auth.JWTSecret, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/products", h.Products.GetAll)
		r.Get("/products/{id}", h.Products.GetByID)

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireUser).Post("/", h.Orders.Create)
			r.With(middleware.RequireUser).Get("/", h.Orders.ListMine)
			r.Get("/{id}", h.Orders.Get)
			r.Post("/{id}/cancel", h.Orders.Cancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))

			r.Get("/orders", h.Orders.AdminList)
			r.Get("/orders/stats", h.Orders.Stats)
			r.Patch("/orders/{id}/status", h.Orders.UpdateStatus)
			r.Post("/orders/{id}/payment", h.Orders.ConfirmPayment)
		})
	})

	r.With(authenticate).Get("/ws/notifications", h.Notifications.Stream)

	return r
}
