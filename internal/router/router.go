package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abba-pos/api/internal/config"
	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/handler"
	mw "github.com/abba-pos/api/internal/middleware"
	"github.com/abba-pos/api/internal/service"
	"github.com/abba-pos/api/internal/store"
	"github.com/abba-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Authentication and role checks are applied per route group.
func New(cfg *config.Config, st *store.Store, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	orderService := service.NewOrderService(st)
	paymentService := service.NewPaymentService(st)

	orderHandler := handler.NewOrderHandler(orderService, hub)
	paymentHandler := handler.NewPaymentHandler(paymentService, hub)
	roomHandler := handler.NewRoomHandler(paymentService)
	menuHandler := handler.NewMenuHandler(st)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	userHandler := handler.NewUserHandler(st)
	reportHandler := handler.NewReportHandler(st)

	// WebSocket route authenticates via token query param.
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	r.Route("/api", func(r chi.Router) {
		// Public
		authHandler.RegisterRoutes(r)

		// All staff
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)
				r.Route("/{id}/payments", func(r chi.Router) {
					r.Get("/", paymentHandler.List)
					r.Group(func(r chi.Router) {
						r.Use(mw.RequireRole(enum.RoleReception, enum.RoleAdmin))
						r.Post("/", paymentHandler.Create)
					})
				})
			})

			r.Route("/menu", func(r chi.Router) {
				menuHandler.RegisterRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.RoleAdmin))
					menuHandler.RegisterAdminRoutes(r)
				})
			})

			// Reception desk
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleReception, enum.RoleAdmin))
				r.Route("/rooms", roomHandler.RegisterRoutes)
			})

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAdmin))
				r.Route("/users", userHandler.RegisterRoutes)
				r.Route("/reports", reportHandler.RegisterRoutes)
			})
		})
	})

	return r
}
