// internal/domain/item.go
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item represents a single purchasable unit in the storefront.
type Item struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"` // Always positive
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	PurchasedBy uuid.NullUUID   `db:"purchased_by" json:"purchasedBy"` // Null until sold
	PurchasedAt sql.NullTime    `db:"purchased_at" json:"-"`
}

// NewItem creates a new, unpurchased Item.
func NewItem(name string, price decimal.Decimal) *Item {
	return &Item{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
}

// Purchased reports whether the item has been sold.
func (i *Item) Purchased() bool {
	return i.PurchasedBy.Valid
}
