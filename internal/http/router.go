package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"storepay/internal/config"
	"storepay/internal/http/handlers"
	middlewarex "storepay/internal/http/middleware"
	"storepay/internal/services/order"
	"storepay/internal/services/payment"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterDependencies holds all dependencies for the HTTP router
type RouterDependencies struct {
	Config         config.Cfg
	PaymentService *payment.Service
	OrderService   *order.Service
	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter creates the HTTP router for the storefront payment API
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middlewarex.RequestLogger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.App.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check (public)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		body := map[string]any{"status": "ok", "watching": deps.PaymentService.Watching()}
		code := http.StatusOK
		if deps.Ready != nil {
			if err := deps.Ready(req.Context()); err != nil {
				zerolog.Ctx(req.Context()).Error().Err(err).Msg("readiness check failed")
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})

	// Storefront API (public, called from checkout)
	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", handlers.CreateOrder(deps.OrderService))
		r.Post("/pay", handlers.ProcessPayment(deps.PaymentService))
		r.Get("/transaction/{ref}", handlers.TransactionStatus(deps.PaymentService))
		r.Get("/payments/{ref}", handlers.PaymentStatus(deps.PaymentService))
		r.Delete("/payments/{ref}/watch", handlers.StopWatching(deps.PaymentService))
	})

	// Admin console (protected by admin token)
	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarex.AdminAuth(deps.Config))
		r.Get("/payments", handlers.ListPayments(deps.PaymentService))
	})

	return r
}
