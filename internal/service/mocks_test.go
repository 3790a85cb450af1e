// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	args := m.Called(ctx, q, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, q repository.DBExecutor, username string) (*domain.User, error) {
	args := m.Called(ctx, q, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ApplyPurchase(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, newBalance decimal.Decimal, itemID uuid.UUID) error {
	args := m.Called(ctx, q, userID, newBalance, itemID)
	return args.Error(0)
}

func (m *MockUserRepository) DebitForPurchase(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, price decimal.Decimal, itemID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, q, userID, price, itemID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) GetUserPurchases(ctx context.Context, q repository.DBExecutor, username string) (*domain.UserPurchases, error) {
	args := m.Called(ctx, q, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserPurchases), args.Error(1)
}

func (m *MockUserRepository) CountUsers(ctx context.Context, q repository.DBExecutor) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

// MockItemRepository is a mock implementation of repository.ItemRepository.
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) CreateItem(ctx context.Context, q repository.DBExecutor, item *domain.Item) error {
	args := m.Called(ctx, q, item)
	return args.Error(0)
}

func (m *MockItemRepository) GetItemByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Item, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *MockItemRepository) SampleEligibleItem(ctx context.Context, q repository.DBExecutor, maxPrice decimal.Decimal) (*domain.Item, error) {
	args := m.Called(ctx, q, maxPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *MockItemRepository) MarkPurchased(ctx context.Context, q repository.DBExecutor, itemID, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, q, itemID, userID, at)
	return args.Error(0)
}

func (m *MockItemRepository) ClaimItem(ctx context.Context, q repository.DBExecutor, itemID, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, q, itemID, userID, at)
	return args.Error(0)
}

func (m *MockItemRepository) CountItems(ctx context.Context, q repository.DBExecutor) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implements repository.DBExecutor by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockProducer is a mock implementation of channel.Producer.
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockProducer) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

// decimalEq matches a decimal argument by value rather than by representation.
func decimalEq(want decimal.Decimal) interface{} {
	return mock.MatchedBy(func(got decimal.Decimal) bool { return got.Equal(want) })
}
