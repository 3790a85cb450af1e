// internal/repository/user_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// CreateUser inserts a new user using the provided DBExecutor.
	CreateUser(ctx context.Context, q DBExecutor, user *domain.User) error
	// GetUserByUsername retrieves a user by their username.
	GetUserByUsername(ctx context.Context, q DBExecutor, username string) (*domain.User, error)
	// ApplyPurchase sets the user's balance and appends itemID to their purchase list.
	ApplyPurchase(ctx context.Context, q DBExecutor, userID uuid.UUID, newBalance decimal.Decimal, itemID uuid.UUID) error
	// DebitForPurchase subtracts price from the balance and appends itemID, but only
	// while the balance still covers the price. Returns util.ErrInsufficientFunds otherwise.
	DebitForPurchase(ctx context.Context, q DBExecutor, userID uuid.UUID, price decimal.Decimal, itemID uuid.UUID) (decimal.Decimal, error)
	// GetUserPurchases joins the user with the items referenced by their purchase list.
	GetUserPurchases(ctx context.Context, q DBExecutor, username string) (*domain.UserPurchases, error)
	// CountUsers returns the number of stored users.
	CountUsers(ctx context.Context, q DBExecutor) (int64, error)
}
