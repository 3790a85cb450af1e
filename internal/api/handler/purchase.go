// internal/api/handler/purchase.go
package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/client"
	"storefront/internal/service"
	"storefront/internal/util"
)

// PurchaseHandler serves the ingress API: it accepts purchase intents and
// proxies purchase-history reads to the Query Service.
type PurchaseHandler struct {
	intents service.IntentService
	queries client.QueryClient
	logger  *slog.Logger
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(intents service.IntentService, queries client.QueryClient, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		intents: intents,
		queries: queries,
		logger:  logger,
	}
}

// PurchaseRequest represents the request body for a purchase.
type PurchaseRequest struct {
	Username     string          `json:"username"`
	MaxItemPrice json.RawMessage `json:"maxItemPrice"` // must be a JSON number
}

// maxItemPrice parses MaxItemPrice, rejecting absent, null and quoted values.
func (req PurchaseRequest) maxItemPrice() (decimal.Decimal, bool) {
	raw := bytes.TrimSpace(req.MaxItemPrice)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}

// Purchase accepts a purchase intent for asynchronous settlement.
// A 202 only means the intent reached the channel, not that anything was bought.
// POST /purchase
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, fmt.Errorf("malformed request body: %w", util.ErrInvalidInput))
		return
	}

	// Basic validation
	price, ok := req.maxItemPrice()
	if strings.TrimSpace(req.Username) == "" || !ok {
		respondWithError(h.logger, w, fmt.Errorf("request body must contain username and a numeric maxItemPrice: %w", util.ErrInvalidInput))
		return
	}

	intent, err := h.intents.Submit(r.Context(), req.Username, price)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusAccepted, map[string]interface{}{
		"message":         "Purchase request sent successfully",
		"purchaseRequest": intent,
	})
}

// GetAllUserBuys relays the Query Service's answer verbatim.
// GET /getAllUserBuys?username=<name>
func (h *PurchaseHandler) GetAllUserBuys(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		respondWithJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "username parameter is required"})
		return
	}

	resp, err := h.queries.GetAllUserBuys(r.Context(), username)
	if err != nil {
		h.logger.Error("Failed to reach query service", "username", username, "error", err)
		respondWithError(h.logger, w, err)
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
