// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/internal/api/handler"
	"storefront/internal/health"
)

func newBaseRouter(state *health.State) chi.Router {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests

	// Health check endpoint: 503 until the process is ready
	r.Get("/health", state.Handler())
	return r
}

// NewIngressRouter sets up the public ingress API.
func NewIngressRouter(purchaseHandler *handler.PurchaseHandler, state *health.State, logger *slog.Logger) http.Handler {
	r := newBaseRouter(state)

	r.Post("/purchase", purchaseHandler.Purchase)
	r.Get("/getAllUserBuys", purchaseHandler.GetAllUserBuys)

	logger.Debug("Ingress routes registered")
	return r
}

// NewQueryRouter sets up the fulfillment-side Query Service API.
func NewQueryRouter(queryHandler *handler.QueryHandler, state *health.State, logger *slog.Logger) http.Handler {
	r := newBaseRouter(state)

	r.Get("/getAllUserBuys", queryHandler.GetAllUserBuys)

	logger.Debug("Query routes registered")
	return r
}
