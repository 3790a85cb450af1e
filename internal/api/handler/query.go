// internal/api/handler/query.go
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/service"
	"storefront/internal/util"
)

// QueryHandler serves the fulfillment-side read API.
type QueryHandler struct {
	service service.QueryService
	logger  *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(svc service.QueryService, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		service: svc,
		logger:  logger,
	}
}

// GetAllUserBuys returns a user's profile with the items they bought, oldest first.
// GET /getAllUserBuys?username=<name>
func (h *QueryHandler) GetAllUserBuys(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "username parameter is required"})
		return
	}

	purchases, err := h.service.GetUserPurchases(r.Context(), username)
	if err != nil {
		switch {
		case util.IsError(err, util.ErrUserNotFound):
			respondWithJSON(h.logger, w, http.StatusNotFound, map[string]string{"error": "User " + username + " not found"})
		case util.IsError(err, util.ErrInvalidInput):
			respondWithError(h.logger, w, err)
		default:
			h.logger.Error("Failed to fetch user buys", "username", username, "error", err)
			respondWithJSON(h.logger, w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch user buys"})
		}
		return
	}

	h.logger.Debug("User buys fetched", "username", username, "items", len(purchases.PurchasedItems))
	respondWithJSON(h.logger, w, http.StatusOK, purchases)
}
