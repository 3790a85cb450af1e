// internal/domain/purchases.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchasedItem is the denormalized view of an item inside UserPurchases.
type PurchasedItem struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	PurchasedAt *time.Time      `json:"purchasedAt"`
}

// UserPurchases is the flattened user profile returned by the query service.
type UserPurchases struct {
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	Balance        decimal.Decimal `json:"balance"`
	PurchasedItems []PurchasedItem `json:"purchaseditems"`
}
