package seed

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/util"
	"storefront/pkg/db"
)

// fakeTx is a transaction that also satisfies repository.DBExecutor; the
// repositories are mocked, so the executor methods are never reached.
type fakeTx struct {
	repository.DBExecutor
	mock.Mock
}

func (m *fakeTx) Commit() error   { return m.Called().Error(0) }
func (m *fakeTx) Rollback() error { return m.Called().Error(0) }

type mockUsers struct {
	repository.UserRepository
	mock.Mock
}

func (m *mockUsers) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	return m.Called(ctx, q, user).Error(0)
}

func (m *mockUsers) GetUserByUsername(ctx context.Context, q repository.DBExecutor, username string) (*domain.User, error) {
	args := m.Called(ctx, q, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUsers) CountUsers(ctx context.Context, q repository.DBExecutor) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

type mockItems struct {
	repository.ItemRepository
	mock.Mock
}

func (m *mockItems) CreateItem(ctx context.Context, q repository.DBExecutor, item *domain.Item) error {
	return m.Called(ctx, q, item).Error(0)
}

func (m *mockItems) CountItems(ctx context.Context, q repository.DBExecutor) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

func newTestSeeder(tx *fakeTx, users *mockUsers, items *mockItems) *Seeder {
	return NewSeeder(
		nil,
		users,
		items,
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) { return tx, nil },
		func(c db.TxController) error { return tx.Commit() },
		func(c db.TxController) { _ = tx.Rollback() },
		NewGenerator(42),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

var usernamePattern = regexp.MustCompile(`^[a-z]+[0-9]{3}$`)

func TestGenerator(t *testing.T) {
	g := NewGenerator(7)
	for i := 0; i < 500; i++ {
		name := g.Username()
		assert.LessOrEqual(t, len(name), MaxUsernameLength, name)
		assert.Regexp(t, usernamePattern, name)

		item := g.ItemName()
		assert.Len(t, strings.Split(item, "_"), 3, item)

		price := g.Price(10, 200)
		assert.True(t, price.GreaterThanOrEqual(decimal.NewFromInt(10)), price.String())
		assert.True(t, price.LessThanOrEqual(decimal.NewFromInt(200)), price.String())
		assert.True(t, price.Equal(price.Truncate(0)), "whole units only")
	}

	assert.Equal(t, "wolf123@example.com", Email("Wolf123"))
	assert.True(t, g.Price(5, 5).Equal(decimal.NewFromInt(5)))

	// Same seed, same sequence.
	a, b := NewGenerator(99), NewGenerator(99)
	assert.Equal(t, a.Username(), b.Username())
	assert.Equal(t, a.ItemName(), b.ItemName())
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	bad := []Options{
		{Users: -1, Items: 1, Balance: 1, MinPrice: 1, MaxPrice: 2},
		{Users: 1, Items: 1, Balance: -5, MinPrice: 1, MaxPrice: 2},
		{Users: 1, Items: 1, Balance: 1, MinPrice: 0, MaxPrice: 2},
		{Users: 1, Items: 1, Balance: 1, MinPrice: 20, MaxPrice: 10},
	}
	for _, o := range bad {
		assert.ErrorIs(t, o.Validate(), util.ErrInvalidInput, "%+v", o)
	}
}

func TestSeederRun(t *testing.T) {
	opts := Options{Users: 5, Items: 8, Balance: 1000, MinPrice: 10, MaxPrice: 200}

	t.Run("TopsUpToDesiredCounts", func(t *testing.T) {
		ctx := context.Background()
		tx, users, items := new(fakeTx), new(mockUsers), new(mockItems)
		s := newTestSeeder(tx, users, items)

		tx.On("Commit").Return(nil).Once()
		tx.On("Rollback").Return(sql.ErrTxDone).Maybe()
		users.On("CountUsers", ctx, tx).Return(int64(2), nil).Once()
		users.On("GetUserByUsername", ctx, tx, mock.Anything).Return(nil, util.ErrNotFound)
		users.On("CreateUser", ctx, tx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == u.Username+"@example.com" && u.Balance.Equal(decimal.NewFromInt(1000)) && len(u.Purchases) == 0
		})).Return(nil).Times(3)
		items.On("CountItems", ctx, tx).Return(int64(8), nil).Once()

		res, err := s.Run(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, &Result{UsersCreated: 3, ItemsCreated: 0}, res)
		items.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything, mock.Anything)
		mock.AssertExpectationsForObjects(t, tx, users, items)
	})

	t.Run("InsertsItemsInRange", func(t *testing.T) {
		ctx := context.Background()
		tx, users, items := new(fakeTx), new(mockUsers), new(mockItems)
		s := newTestSeeder(tx, users, items)

		tx.On("Commit").Return(nil).Once()
		tx.On("Rollback").Return(sql.ErrTxDone).Maybe()
		users.On("CountUsers", ctx, tx).Return(int64(5), nil).Once()
		items.On("CountItems", ctx, tx).Return(int64(0), nil).Once()
		items.On("CreateItem", ctx, tx, mock.MatchedBy(func(i *domain.Item) bool {
			return !i.Purchased() && i.Price.GreaterThanOrEqual(decimal.NewFromInt(10)) && i.Price.LessThanOrEqual(decimal.NewFromInt(200))
		})).Return(nil).Times(8)

		res, err := s.Run(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, 8, res.ItemsCreated)
		mock.AssertExpectationsForObjects(t, tx, users, items)
	})

	t.Run("SkipsTakenUsernames", func(t *testing.T) {
		ctx := context.Background()
		tx, users, items := new(fakeTx), new(mockUsers), new(mockItems)
		s := newTestSeeder(tx, users, items)

		tx.On("Commit").Return(nil).Once()
		tx.On("Rollback").Return(sql.ErrTxDone).Maybe()
		users.On("CountUsers", ctx, tx).Return(int64(4), nil).Once()
		existing := &domain.User{ID: uuid.New(), Username: "taken", CreatedAt: time.Now()}
		users.On("GetUserByUsername", ctx, tx, mock.Anything).Return(existing, nil).Once()
		users.On("GetUserByUsername", ctx, tx, mock.Anything).Return(nil, util.ErrNotFound).Once()
		users.On("CreateUser", ctx, tx, mock.Anything).Return(nil).Once()
		items.On("CountItems", ctx, tx).Return(int64(8), nil).Once()

		res, err := s.Run(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, 1, res.UsersCreated)
		users.AssertNumberOfCalls(t, "GetUserByUsername", 2)
	})

	t.Run("InsertFailureRollsBack", func(t *testing.T) {
		ctx := context.Background()
		tx, users, items := new(fakeTx), new(mockUsers), new(mockItems)
		s := newTestSeeder(tx, users, items)

		tx.On("Rollback").Return(nil).Once()
		users.On("CountUsers", ctx, tx).Return(int64(0), nil).Once()
		users.On("GetUserByUsername", ctx, tx, mock.Anything).Return(nil, util.ErrNotFound).Once()
		users.On("CreateUser", ctx, tx, mock.Anything).Return(errors.New("disk full")).Once()

		_, err := s.Run(ctx, opts)

		assert.ErrorContains(t, err, "disk full")
		tx.AssertNotCalled(t, "Commit")
		items.AssertNotCalled(t, "CountItems", mock.Anything, mock.Anything)
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		tx, users, items := new(fakeTx), new(mockUsers), new(mockItems)
		s := newTestSeeder(tx, users, items)

		_, err := s.Run(context.Background(), Options{Users: 1, Items: 1, MinPrice: 50, MaxPrice: 10})

		assert.ErrorIs(t, err, util.ErrInvalidInput)
		users.AssertNotCalled(t, "CountUsers", mock.Anything, mock.Anything)
	})
}
