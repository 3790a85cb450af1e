// internal/service/settlement_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/channel"
	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/util"
	"storefront/pkg/db"
)

// SettlementMode selects how the two commit-phase writes are applied.
type SettlementMode string

const (
	// ModeIndependent issues the user debit and the item mark as two separate,
	// non-transactional updates. Two settlements can sell the same item.
	ModeIndependent SettlementMode = "independent"
	// ModeGuarded claims the item with a purchased_by IS NULL compare-and-swap and
	// debits the user inside one transaction. Losing the claim is a rejection.
	ModeGuarded SettlementMode = "guarded"
)

// ParseSettlementMode validates a configured mode; empty means ModeIndependent.
func ParseSettlementMode(s string) (SettlementMode, error) {
	switch SettlementMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeIndependent:
		return ModeIndependent, nil
	case ModeGuarded:
		return ModeGuarded, nil
	default:
		return "", fmt.Errorf("unknown settlement mode %q: %w", s, util.ErrInvalidInput)
	}
}

// Settlement describes a completed purchase.
type Settlement struct {
	UserID      uuid.UUID
	Username    string
	ItemID      uuid.UUID
	ItemName    string
	Price       decimal.Decimal
	NewBalance  decimal.Decimal
	PurchasedAt time.Time
}

// Rejection is a terminal business outcome: the intent is dropped, nothing is written.
type Rejection struct {
	Reason   error // one of the util sentinel errors
	Username string
	Detail   string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("purchase for '%s' rejected: %s: %s", r.Username, r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Reason }

// IsRejection reports whether err is a business rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// SettlementService executes purchase intents against the store.
type SettlementService interface {
	// Settle runs user lookup, balance check, item sampling and commit for one intent.
	// Business failures come back as *Rejection; anything else is an infrastructure error.
	Settle(ctx context.Context, intent *domain.PurchaseIntent) (*Settlement, error)
	// HandleMessage is the channel.Handler for the purchase topic. Malformed
	// messages and rejections are logged and swallowed; store errors are returned
	// unlogged.
	HandleMessage(ctx context.Context, msg channel.Message) error
}

// settlementService implements the SettlementService interface.
type settlementService struct {
	mode       SettlementMode
	dbBeginner db.DBTxBeginner       // For ModeGuarded transactions (e.g., *sqlx.DB)
	dbExecutor repository.DBExecutor // For non-transactional access (e.g., *sqlx.DB)
	userRepo   repository.UserRepository
	itemRepo   repository.ItemRepository
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	clock      Clock
	logger     *slog.Logger
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	mode SettlementMode,
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	itemRepo repository.ItemRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	clock Clock,
	logger *slog.Logger,
) SettlementService {
	return &settlementService{
		mode:       mode,
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		userRepo:   userRepo,
		itemRepo:   itemRepo,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		clock:      clock,
		logger:     logger,
	}
}

func reject(reason error, username, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Username: username, Detail: fmt.Sprintf(format, args...)}
}

func (s *settlementService) HandleMessage(ctx context.Context, msg channel.Message) error {
	log := s.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "key", msg.Key)

	if len(msg.Value) == 0 {
		log.Warn("Received empty purchase message")
		return nil
	}
	var intent domain.PurchaseIntent
	if err := json.Unmarshal(msg.Value, &intent); err != nil {
		log.Warn("Dropping malformed purchase message", "error", err)
		return nil
	}

	log.Info("Processing purchase message", "username", intent.Username, "max_item_price", intent.MaxItemPrice.String())
	result, err := s.Settle(ctx, &intent)
	if err != nil {
		var rejection *Rejection
		if errors.As(err, &rejection) {
			log.Warn("Purchase rejected", "username", rejection.Username, "reason", rejection.Reason.Error(), "detail", rejection.Detail)
			return nil
		}
		// The consumer logs the returned error.
		return err
	}

	log.Info("Purchased item",
		"username", result.Username,
		"item_id", result.ItemID.String(),
		"item_name", result.ItemName,
		"price", result.Price.String(),
		"new_balance", result.NewBalance.String())
	return nil
}

func (s *settlementService) Settle(ctx context.Context, intent *domain.PurchaseIntent) (*Settlement, error) {
	if intent == nil || strings.TrimSpace(intent.Username) == "" {
		return nil, reject(util.ErrMalformedMessage, "", "intent has no username")
	}
	if !intent.MaxItemPrice.IsPositive() {
		return nil, reject(util.ErrMalformedMessage, intent.Username, "maxItemPrice %s is not positive", intent.MaxItemPrice)
	}

	user, err := s.userRepo.GetUserByUsername(ctx, s.dbExecutor, intent.Username)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, reject(util.ErrUserNotFound, intent.Username, "no such user")
		}
		return nil, fmt.Errorf("settle: failed to load user '%s': %w", intent.Username, err)
	}

	if !user.CanAfford(intent.MaxItemPrice) {
		return nil, reject(util.ErrInsufficientFunds, user.Username,
			"balance %s is below maxItemPrice %s", user.Balance, intent.MaxItemPrice)
	}

	// Nothing is reserved between sampling and commit.
	item, err := s.itemRepo.SampleEligibleItem(ctx, s.dbExecutor, intent.MaxItemPrice)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, reject(util.ErrNoEligibleItem, user.Username, "no unpurchased item priced at or below %s", intent.MaxItemPrice)
		}
		return nil, fmt.Errorf("settle: failed to sample item: %w", err)
	}

	purchasedAt := s.clock.now()
	if s.mode == ModeGuarded {
		return s.commitGuarded(ctx, user, item, purchasedAt)
	}
	return s.commitIndependent(ctx, user, item, purchasedAt)
}

// commitIndependent applies the debit and the item mark as two separately committed writes.
// A failure between them leaves the user debited and the item unmarked.
func (s *settlementService) commitIndependent(ctx context.Context, user *domain.User, item *domain.Item, at time.Time) (*Settlement, error) {
	newBalance := user.Balance.Sub(item.Price)

	if err := s.userRepo.ApplyPurchase(ctx, s.dbExecutor, user.ID, newBalance, item.ID); err != nil {
		return nil, fmt.Errorf("settle: failed to debit user %s: %w", user.ID, err)
	}
	if err := s.itemRepo.MarkPurchased(ctx, s.dbExecutor, item.ID, user.ID, at); err != nil {
		return nil, fmt.Errorf("settle: user %s debited but item %s not marked: %w", user.ID, item.ID, err)
	}

	return &Settlement{
		UserID:      user.ID,
		Username:    user.Username,
		ItemID:      item.ID,
		ItemName:    item.Name,
		Price:       item.Price,
		NewBalance:  newBalance,
		PurchasedAt: at,
	}, nil
}

// commitGuarded claims the item and debits the user in one transaction.
func (s *settlementService) commitGuarded(ctx context.Context, user *domain.User, item *domain.Item, at time.Time) (*Settlement, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("settle: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("settle: transaction controller does not implement DBExecutor")
	}

	if err := s.itemRepo.ClaimItem(ctx, txExecutor, item.ID, user.ID, at); err != nil {
		if util.IsError(err, util.ErrItemAlreadyPurchased) {
			return nil, reject(util.ErrItemAlreadyPurchased, user.Username, "item %s was claimed by another settlement", item.ID)
		}
		return nil, fmt.Errorf("settle: failed to claim item %s: %w", item.ID, err)
	}

	newBalance, err := s.userRepo.DebitForPurchase(ctx, txExecutor, user.ID, item.Price, item.ID)
	if err != nil {
		if util.IsError(err, util.ErrInsufficientFunds) {
			return nil, reject(util.ErrInsufficientFunds, user.Username, "balance changed below price %s", item.Price)
		}
		return nil, fmt.Errorf("settle: failed to debit user %s: %w", user.ID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("settle: failed to commit transaction: %w", err)
	}

	return &Settlement{
		UserID:      user.ID,
		Username:    user.Username,
		ItemID:      item.ID,
		ItemName:    item.Name,
		Price:       item.Price,
		NewBalance:  newBalance,
		PurchasedAt: at,
	}, nil
}
