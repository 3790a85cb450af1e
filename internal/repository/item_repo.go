// internal/repository/item_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ItemRepository defines the interface for item data operations.
type ItemRepository interface {
	// CreateItem inserts a new item using the provided DBExecutor.
	CreateItem(ctx context.Context, q DBExecutor, item *domain.Item) error
	// GetItemByID retrieves an item by its ID.
	GetItemByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Item, error)
	// SampleEligibleItem draws one unpurchased item priced at or below maxPrice,
	// uniformly at random. Returns util.ErrNotFound when none match.
	SampleEligibleItem(ctx context.Context, q DBExecutor, maxPrice decimal.Decimal) (*domain.Item, error)
	// MarkPurchased unconditionally records the buyer and purchase time on the item.
	MarkPurchased(ctx context.Context, q DBExecutor, itemID, userID uuid.UUID, at time.Time) error
	// ClaimItem records the buyer only if the item is still unpurchased.
	// Returns util.ErrItemAlreadyPurchased if another buyer got there first.
	ClaimItem(ctx context.Context, q DBExecutor, itemID, userID uuid.UUID, at time.Time) error
	// CountItems returns the number of stored items.
	CountItems(ctx context.Context, q DBExecutor) (int64, error)
}
