package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
)

// AccountFilter selects accounts; zero fields match everything.
type AccountFilter struct {
	AccountType        domain.AccountType
	Status             domain.AccountStatus
	VerificationStatus domain.VerificationStatus
	Limit              int
}

// TransactionFilter selects transactions. Results are always ordered newest first.
type TransactionFilter struct {
	UserID        string
	Type          domain.TransactionType
	Status        domain.TransactionStatus
	RideID        string
	CreatedBefore time.Time
	Limit         int
}

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]domain.Account, error)

	// AdjustBalance applies delta atomically and returns the new wallet balance. It fails
	// with domain.ErrInsufficientBalance, leaving the account untouched, when the balance
	// would become negative.
	AdjustBalance(ctx context.Context, id string, delta domain.BalanceDelta) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error
	UpdateVerification(ctx context.Context, id string, decision domain.VerificationDecision) error
}

type TransactionRepository interface {
	// Create assigns the ID and timestamps. A second settlement record of the same type for
	// the same ride fails with domain.ErrAlreadyProcessed.
	Create(ctx context.Context, txn *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)

	// Resolve moves a pending transaction to res.Status. Anything not pending fails with
	// domain.ErrAlreadyProcessed.
	Resolve(ctx context.Context, id string, res domain.Resolution) (*domain.Transaction, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	CreateBatch(ctx context.Context, ns []*domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	// ListUndelivered returns pending or failed notifications created before olderThan that
	// have been attempted fewer than maxAttempts times, oldest first.
	ListUndelivered(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]domain.Notification, error)
	RecordDelivery(ctx context.Context, id string, d domain.Delivery) error
	MarkRead(ctx context.Context, id, userID string) error
}

// Store is the record store. Reads made through the Store handed to RunInTx see a
// consistent snapshot and writes commit together or not at all. Backends with optimistic
// concurrency may call fn more than once, so fn must not act outside the store.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Notifications() NotificationRepository
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
