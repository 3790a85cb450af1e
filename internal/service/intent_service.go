// internal/service/intent_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/channel"
	"storefront/internal/domain"
	"storefront/internal/util"
)

// IntentService accepts purchase requests and hands them to the purchase channel.
type IntentService interface {
	// Submit validates, timestamps and publishes one intent keyed by username.
	// Success means the intent was accepted for processing, not that it was fulfilled.
	Submit(ctx context.Context, username string, maxItemPrice decimal.Decimal) (*domain.PurchaseIntent, error)
}

// intentService implements the IntentService interface.
type intentService struct {
	producer channel.Producer
	clock    Clock
	logger   *slog.Logger
}

// NewIntentService creates a new IntentService. A nil clock uses time.Now.
func NewIntentService(producer channel.Producer, clock Clock, logger *slog.Logger) IntentService {
	return &intentService{
		producer: producer,
		clock:    clock,
		logger:   logger,
	}
}

func (s *intentService) Submit(ctx context.Context, username string, maxItemPrice decimal.Decimal) (*domain.PurchaseIntent, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", util.ErrInvalidInput)
	}
	if !maxItemPrice.IsPositive() {
		return nil, fmt.Errorf("maxItemPrice must be positive: %w", util.ErrInvalidInput)
	}

	intent := domain.NewPurchaseIntent(username, maxItemPrice, s.clock.now())
	payload, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("submit: failed to encode intent: %w", err)
	}

	// No deduplication: every accepted request is published exactly once.
	if err := s.producer.Publish(ctx, intent.Username, payload); err != nil {
		return nil, fmt.Errorf("submit: failed to publish intent for '%s': %w", intent.Username, err)
	}
	s.logger.Info("Purchase intent published", "username", intent.Username, "max_item_price", intent.MaxItemPrice.String())
	return intent, nil
}
