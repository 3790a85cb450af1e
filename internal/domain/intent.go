// internal/domain/intent.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and balances travel as JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// PurchaseIntent is the message carried on the purchase channel.
// It is never persisted on its own.
type PurchaseIntent struct {
	Username     string          `json:"username"`
	MaxItemPrice decimal.Decimal `json:"maxItemPrice"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewPurchaseIntent stamps an intent with the given time.
func NewPurchaseIntent(username string, maxItemPrice decimal.Decimal, at time.Time) *PurchaseIntent {
	return &PurchaseIntent{
		Username:     username,
		MaxItemPrice: maxItemPrice,
		Timestamp:    at.UTC(),
	}
}
