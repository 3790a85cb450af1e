// internal/repository/postgres/item_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/util"
)

// ItemRepository implements repository.ItemRepository for PostgreSQL.
type ItemRepository struct{}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository() repository.ItemRepository {
	return &ItemRepository{}
}

const itemColumns = `id, name, price, created_at, purchased_by, purchased_at`

// CreateItem inserts a new item into the database using the provided DBExecutor.
func (r *ItemRepository) CreateItem(ctx context.Context, q repository.DBExecutor, item *domain.Item) error {
	query := `INSERT INTO items (` + itemColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.ExecContext(ctx, query, item.ID, item.Name, item.Price, item.CreatedAt, item.PurchasedBy, item.PurchasedAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetItemByID retrieves an item by its ID using the provided DBExecutor.
func (r *ItemRepository) GetItemByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Item, error) {
	var item domain.Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	err := q.GetContext(ctx, &item, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item by ID %s: %w", id, err)
	}
	return &item, nil
}

// SampleEligibleItem picks one unpurchased item with price <= maxPrice, uniformly at random.
func (r *ItemRepository) SampleEligibleItem(ctx context.Context, q repository.DBExecutor, maxPrice decimal.Decimal) (*domain.Item, error) {
	var item domain.Item
	query := `SELECT ` + itemColumns + `
		FROM items
		WHERE price <= $1 AND purchased_by IS NULL
		ORDER BY random()
		LIMIT 1`
	err := q.GetContext(ctx, &item, query, maxPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to sample item with price <= %s: %w", maxPrice, err)
	}
	return &item, nil
}

// MarkPurchased sets purchased_by and purchased_at regardless of the current owner; last write wins.
func (r *ItemRepository) MarkPurchased(ctx context.Context, q repository.DBExecutor, itemID, userID uuid.UUID, at time.Time) error {
	query := `UPDATE items SET purchased_by = $1, purchased_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, userID, at, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark item %s purchased: %w", itemID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after marking item %s purchased: %w", itemID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when marking item %s purchased: %w", itemID, util.ErrNotFound)
	}
	return nil
}

// ClaimItem is the compare-and-swap form of MarkPurchased.
func (r *ItemRepository) ClaimItem(ctx context.Context, q repository.DBExecutor, itemID, userID uuid.UUID, at time.Time) error {
	query := `UPDATE items SET purchased_by = $1, purchased_at = $2 WHERE id = $3 AND purchased_by IS NULL`
	result, err := q.ExecContext(ctx, query, userID, at, itemID)
	if err != nil {
		return fmt.Errorf("failed to claim item %s: %w", itemID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after claiming item %s: %w", itemID, err)
	}
	if rowsAffected == 0 {
		return util.ErrItemAlreadyPurchased
	}
	return nil
}

// CountItems returns the number of rows in items.
func (r *ItemRepository) CountItems(ctx context.Context, q repository.DBExecutor) (int64, error) {
	var count int64
	if err := q.GetContext(ctx, &count, `SELECT COUNT(*) FROM items`); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}
