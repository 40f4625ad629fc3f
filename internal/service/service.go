package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
)

type LedgerService interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal, method, reference string) (*domain.Transaction, error)
	RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, method, accountRef string) (*domain.Transaction, error)
	SettleRide(ctx context.Context, settlement domain.RideSettlement) (*domain.SettlementResult, error)
	GetTransactionHistory(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	GetTransactionStats(ctx context.Context, userID string) (*domain.TransactionStats, error)
}

// VerificationService holds the admin-only operations. Every method first checks that
// adminID is an active admin account.
type VerificationService interface {
	ApproveTransaction(ctx context.Context, transactionID, adminID string) (*domain.Transaction, error)
	RejectTransaction(ctx context.Context, transactionID, reason, adminID string) (*domain.Transaction, error)
	ApproveDriverDocuments(ctx context.Context, userID, adminID string) error
	RejectDriverDocuments(ctx context.Context, userID, reason, adminID string) error
	BlockUser(ctx context.Context, userID, reason, adminID string) error
	UnblockUser(ctx context.Context, userID, adminID string) error

	ListPendingTransactions(ctx context.Context, adminID string, limit int) ([]domain.Transaction, error)
	ListPendingDriverVerifications(ctx context.Context, adminID string, limit int) ([]domain.Account, error)
	GetPlatformStats(ctx context.Context, adminID string) (*domain.PlatformStats, error)
	SendBroadcast(ctx context.Context, message, adminID string) (int, error)
}

type AccountService interface {
	RegisterAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

// NotificationDispatcher turns committed events into stored notifications and hands
// them to the outbound channels.
type NotificationDispatcher interface {
	Format(e domain.Event) (title, message string)
	Handle(ctx context.Context, e domain.Event) error
	Redeliver(ctx context.Context, n domain.Notification) error
}

type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)
	RecordTransactionVolume(txType domain.TransactionType, amount decimal.Decimal)
	RecordNotification(channel string, status domain.NotificationStatus)
}

type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOperationDuration(string, time.Duration)                    {}
func (NoopMetricsCollector) RecordOperationResult(string, string)                             {}
func (NoopMetricsCollector) RecordTransactionVolume(domain.TransactionType, decimal.Decimal) {}
func (NoopMetricsCollector) RecordNotification(string, domain.NotificationStatus)             {}

// observe records how long operation took and how it ended. Call it deferred with a
// pointer to the named error result.
func observe(m MetricsCollector, operation string, start time.Time, err *error) {
	m.RecordOperationDuration(operation, time.Since(start))
	m.RecordOperationResult(operation, resultLabel(*err))
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return domain.CodeOf(err)
}
