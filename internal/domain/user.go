// internal/domain/user.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a storefront customer.
type User struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Username  string          `db:"username" json:"username"` // Unique username
	Email     string          `db:"email" json:"email"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`     // NUMERIC(20, 4) in DB, never negative after settlement
	Purchases []uuid.UUID     `db:"-" json:"purchases"`         // Ordered ids of purchased items
}

// NewUser creates a new User with an empty purchase list.
func NewUser(username, email string, balance decimal.Decimal) *User {
	return &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
		Balance:   balance,
		Purchases: []uuid.UUID{},
	}
}

// CanAfford reports whether the balance covers amount.
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}
