// internal/repository/postgres/user_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/util"
)

const uniqueViolation = "23505"

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct{}

// NewUserRepository creates a new UserRepository.
// The executor is passed per call so the same repository serves pooled and transactional access.
func NewUserRepository() repository.UserRepository {
	return &UserRepository{}
}

// userRow is the column layout of the users table.
type userRow struct {
	ID        uuid.UUID       `db:"id"`
	Username  string          `db:"username"`
	Email     string          `db:"email"`
	CreatedAt time.Time       `db:"created_at"`
	Balance   decimal.Decimal `db:"balance"`
	Purchases pq.StringArray  `db:"purchases"`
}

func (r userRow) toDomain() (*domain.User, error) {
	purchases := make([]uuid.UUID, 0, len(r.Purchases))
	for _, raw := range r.Purchases {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("user %s has malformed purchase reference %q: %w", r.ID, raw, err)
		}
		purchases = append(purchases, id)
	}
	return &domain.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		Balance:   r.Balance,
		Purchases: purchases,
	}, nil
}

// CreateUser inserts a new user into the database using the provided DBExecutor.
func (r *UserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	purchases := make(pq.StringArray, 0, len(user.Purchases))
	for _, id := range user.Purchases {
		purchases = append(purchases, id.String())
	}

	query := `INSERT INTO users (id, username, email, created_at, balance, purchases)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.CreatedAt, user.Balance, purchases)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("failed to create user '%s': %w", user.Username, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by their username using the provided DBExecutor.
func (r *UserRepository) GetUserByUsername(ctx context.Context, q repository.DBExecutor, username string) (*domain.User, error) {
	var row userRow
	query := `SELECT id, username, email, created_at, balance, purchases FROM users WHERE username = $1`
	err := q.GetContext(ctx, &row, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username '%s': %w", username, err)
	}
	return row.toDomain()
}

// ApplyPurchase overwrites the balance and pushes itemID onto the purchase list.
func (r *UserRepository) ApplyPurchase(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, newBalance decimal.Decimal, itemID uuid.UUID) error {
	query := `UPDATE users SET balance = $1, purchases = array_append(purchases, $2) WHERE id = $3`
	result, err := q.ExecContext(ctx, query, newBalance, itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to apply purchase to user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after applying purchase to user %s: %w", userID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when applying purchase to user %s: %w", userID, util.ErrNotFound)
	}
	return nil
}

// DebitForPurchase subtracts price only while the balance still covers it and returns the new balance.
func (r *UserRepository) DebitForPurchase(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, price decimal.Decimal, itemID uuid.UUID) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	query := `UPDATE users
              SET balance = balance - $1, purchases = array_append(purchases, $2)
              WHERE id = $3 AND balance >= $1
              RETURNING balance`
	err := q.QueryRowContext(ctx, query, price, itemID, userID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, util.ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("failed to debit user %s: %w", userID, err)
	}
	return newBalance, nil
}

// purchaseRow is one row of the users ⋈ items join; item columns are null for users without purchases.
type purchaseRow struct {
	Username    string              `db:"username"`
	Email       string              `db:"email"`
	Balance     decimal.Decimal     `db:"balance"`
	ItemName    sql.NullString      `db:"item_name"`
	ItemPrice   decimal.NullDecimal `db:"item_price"`
	PurchasedAt sql.NullTime        `db:"purchased_at"`
}

// GetUserPurchases matches the user by username and looks up every referenced item, in purchase order.
func (r *UserRepository) GetUserPurchases(ctx context.Context, q repository.DBExecutor, username string) (*domain.UserPurchases, error) {
	rows := []purchaseRow{}
	query := `
		SELECT u.username, u.email, u.balance,
		       i.name AS item_name, i.price AS item_price, i.purchased_at
		FROM users u
		LEFT JOIN LATERAL unnest(u.purchases) WITH ORDINALITY AS p(item_id, ord) ON TRUE
		LEFT JOIN items i ON i.id = p.item_id
		WHERE u.username = $1
		ORDER BY p.ord`
	if err := q.SelectContext(ctx, &rows, query, username); err != nil {
		return nil, fmt.Errorf("failed to fetch purchases for user '%s': %w", username, err)
	}
	if len(rows) == 0 {
		return nil, util.ErrNotFound
	}

	view := &domain.UserPurchases{
		Username:       rows[0].Username,
		Email:          rows[0].Email,
		Balance:        rows[0].Balance,
		PurchasedItems: []domain.PurchasedItem{},
	}
	for _, row := range rows {
		if !row.ItemName.Valid {
			continue // no purchases, or a dangling reference
		}
		item := domain.PurchasedItem{
			Name:  row.ItemName.String,
			Price: row.ItemPrice.Decimal,
		}
		if row.PurchasedAt.Valid {
			at := row.PurchasedAt.Time
			item.PurchasedAt = &at
		}
		view.PurchasedItems = append(view.PurchasedItems, item)
	}
	return view, nil
}

// CountUsers returns the number of rows in users.
func (r *UserRepository) CountUsers(ctx context.Context, q repository.DBExecutor) (int64, error) {
	var count int64
	if err := q.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
