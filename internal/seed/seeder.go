// internal/seed/seeder.go
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/util"
	"storefront/pkg/db"
)

// maxNameAttempts bounds retries when a generated username is already taken.
const maxNameAttempts = 50

// Options describes the desired store population.
type Options struct {
	Users    int   // desired total number of users
	Items    int   // desired total number of items
	Balance  int64 // starting balance of each new user
	MinPrice int64
	MaxPrice int64
}

// DefaultOptions matches the demo dataset: 100 users with 1000 each, 1000 items priced 10..200.
func DefaultOptions() Options {
	return Options{Users: 100, Items: 1000, Balance: 1000, MinPrice: 10, MaxPrice: 200}
}

// Validate rejects negative counts and inverted or non-positive price ranges.
func (o Options) Validate() error {
	if o.Users < 0 || o.Items < 0 {
		return fmt.Errorf("counts must not be negative: %w", util.ErrInvalidInput)
	}
	if o.Balance < 0 {
		return fmt.Errorf("balance must not be negative: %w", util.ErrInvalidInput)
	}
	if o.MinPrice <= 0 || o.MaxPrice < o.MinPrice {
		return fmt.Errorf("price range [%d, %d] is invalid: %w", o.MinPrice, o.MaxPrice, util.ErrInvalidInput)
	}
	return nil
}

// Result reports how many rows one run inserted.
type Result struct {
	UsersCreated int
	ItemsCreated int
}

// Seeder tops the store up to the requested population.
type Seeder struct {
	dbBeginner db.DBTxBeginner
	userRepo   repository.UserRepository
	itemRepo   repository.ItemRepository
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	gen        *Generator
	logger     *slog.Logger
}

// NewSeeder creates a new Seeder.
func NewSeeder(
	dbBeginner db.DBTxBeginner,
	userRepo repository.UserRepository,
	itemRepo repository.ItemRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	gen *Generator,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		dbBeginner: dbBeginner,
		userRepo:   userRepo,
		itemRepo:   itemRepo,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		gen:        gen,
		logger:     logger,
	}
}

// Run inserts only the users and items missing from the desired counts, all
// in one transaction. Existing rows are never touched.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("seed: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("seed: transaction controller does not implement DBExecutor")
	}

	res := &Result{}
	if res.UsersCreated, err = s.seedUsers(ctx, txExecutor, opts); err != nil {
		return nil, err
	}
	if res.ItemsCreated, err = s.seedItems(ctx, txExecutor, opts); err != nil {
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("seed: failed to commit transaction: %w", err)
	}
	return res, nil
}

func (s *Seeder) seedUsers(ctx context.Context, q repository.DBExecutor, opts Options) (int, error) {
	count, err := s.userRepo.CountUsers(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("seed: failed to count users: %w", err)
	}
	missing := opts.Users - int(count)
	if missing <= 0 {
		s.logger.Info("No users to insert", "existing", count)
		return 0, nil
	}

	taken := make(map[string]bool, missing)
	balance := decimal.NewFromInt(opts.Balance)
	for i := 0; i < missing; i++ {
		username, err := s.freshUsername(ctx, q, taken)
		if err != nil {
			return 0, err
		}
		user := domain.NewUser(username, Email(username), balance)
		if err := s.userRepo.CreateUser(ctx, q, user); err != nil {
			return 0, fmt.Errorf("seed: %w", err)
		}
	}
	s.logger.Info("Users inserted", "inserted", missing, "total", opts.Users)
	return missing, nil
}

// freshUsername draws names until one is unused both in this run and in the store.
// A failed INSERT would abort the whole transaction, so collisions are checked first.
func (s *Seeder) freshUsername(ctx context.Context, q repository.DBExecutor, taken map[string]bool) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.gen.Username()
		if taken[name] {
			continue
		}
		_, err := s.userRepo.GetUserByUsername(ctx, q, name)
		if util.IsError(err, util.ErrNotFound) {
			taken[name] = true
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("seed: failed to check username '%s': %w", name, err)
		}
		taken[name] = true
	}
	return "", fmt.Errorf("seed: no free username after %d attempts: %w", maxNameAttempts, util.ErrDuplicateEntry)
}

func (s *Seeder) seedItems(ctx context.Context, q repository.DBExecutor, opts Options) (int, error) {
	count, err := s.itemRepo.CountItems(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("seed: failed to count items: %w", err)
	}
	missing := opts.Items - int(count)
	if missing <= 0 {
		s.logger.Info("No items to insert", "existing", count)
		return 0, nil
	}

	for i := 0; i < missing; i++ {
		item := domain.NewItem(s.gen.ItemName(), s.gen.Price(opts.MinPrice, opts.MaxPrice))
		if err := s.itemRepo.CreateItem(ctx, q, item); err != nil {
			return 0, fmt.Errorf("seed: %w", err)
		}
	}
	s.logger.Info("Items inserted", "inserted", missing, "total", opts.Items)
	return missing, nil
}
