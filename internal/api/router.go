package api

import (
	"net/http"
	"time"

	"github.com/dom/product-console/internal/api/handlers"
	"github.com/dom/product-console/internal/api/middleware"
	"github.com/dom/product-console/internal/config"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"github.com/dom/product-console/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(lg))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.BodyLimit(cfg.MaxBodySize))
	r.Use(middleware.RequestMeta)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","timestamp":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, lg)
	productHandler := handlers.NewProductHandler(services.Product, lg)
	auditHandler := handlers.NewAuditHandler(services.Audit, lg)
	streamHandler := handlers.NewAuditStreamHandler(hub, services.Tokens, cfg.FrontendURL, lg)

	requireAuth := middleware.Auth(services.Tokens, lg)
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/", productHandler.Create)
				r.Put("/{id}", productHandler.Update)
				r.Delete("/{id}", productHandler.Delete)
			})
		})

		r.Route("/audit", func(r chi.Router) {
			// The stream authenticates from its query parameter.
			r.Get("/stream", streamHandler.Handle)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Get("/", auditHandler.List)
				r.Get("/stats", auditHandler.Stats)
				r.Get("/user/{userId}", auditHandler.ListByUser)
				r.Get("/{id}", auditHandler.Get)
			})
		})
	})

	return r
}
