package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/events"
	"drivekr-wallet-backend/internal/lock"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

type verificationService struct {
	store        repository.Store
	locker       lock.Locker
	events       events.Publisher
	metrics      MetricsCollector
	storeTimeout time.Duration
	now          func() time.Time
}

func NewVerificationService(
	store repository.Store,
	locker lock.Locker,
	publisher events.Publisher,
	metrics MetricsCollector,
	storeTimeout time.Duration,
) VerificationService {
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	return &verificationService{
		store:        store,
		locker:       locker,
		events:       publisher,
		metrics:      metrics,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// requireAdmin fails with ErrUnauthorized unless adminID names an active admin account.
func (s *verificationService) requireAdmin(ctx context.Context, adminID string) error {
	if adminID == "" {
		return fmt.Errorf("%w: missing admin id", domain.ErrUnauthorized)
	}
	a, err := s.store.Accounts().GetByID(ctx, adminID)
	if err != nil {
		if domain.CodeOf(err) == domain.ErrAccountNotFound.Code {
			return fmt.Errorf("%w: %s is not an admin", domain.ErrUnauthorized, adminID)
		}
		return err
	}
	if !a.IsAdmin() || !a.IsActive() {
		return fmt.Errorf("%w: %s is not an admin", domain.ErrUnauthorized, adminID)
	}
	return nil
}

func (s *verificationService) ApproveTransaction(ctx context.Context, transactionID, adminID string) (txn *domain.Transaction, err error) {
	defer observe(s.metrics, "ApproveTransaction", time.Now(), &err)
	logger.EnterMethod("verificationService.ApproveTransaction", "transactionID", transactionID, "adminID", adminID)

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		logger.ExitMethodWithError("verificationService.ApproveTransaction", err, "adminID", adminID)
		return nil, err
	}
	txn, err = s.resolve(ctx, transactionID, domain.Resolution{
		Status:     domain.TransactionStatusApproved,
		VerifiedBy: adminID,
		VerifiedAt: s.now(),
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService.ApproveTransaction", err, "transactionID", transactionID)
		return nil, err
	}

	s.metrics.RecordTransactionVolume(txn.Type, txn.Amount)
	s.events.Publish(ctx, domain.Event{
		Kind:          domain.EventApproval,
		Subject:       domain.SubjectTransaction,
		UserID:        txn.UserID,
		ActorID:       adminID,
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Status:        string(domain.TransactionStatusApproved),
	})
	logger.ExitMethod("verificationService.ApproveTransaction", "transactionID", txn.ID, "type", txn.Type)
	return txn, nil
}

func (s *verificationService) RejectTransaction(ctx context.Context, transactionID, reason, adminID string) (txn *domain.Transaction, err error) {
	defer observe(s.metrics, "RejectTransaction", time.Now(), &err)
	logger.EnterMethod("verificationService.RejectTransaction", "transactionID", transactionID, "adminID", adminID)

	if err := required("rejection reason", reason); err != nil {
		return nil, err
	}

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		logger.ExitMethodWithError("verificationService.RejectTransaction", err, "adminID", adminID)
		return nil, err
	}
	txn, err = s.resolve(ctx, transactionID, domain.Resolution{
		Status:     domain.TransactionStatusRejected,
		Reason:     strings.TrimSpace(reason),
		VerifiedBy: adminID,
		VerifiedAt: s.now(),
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService.RejectTransaction", err, "transactionID", transactionID)
		return nil, err
	}

	s.events.Publish(ctx, domain.Event{
		Kind:          domain.EventRejection,
		Subject:       domain.SubjectTransaction,
		UserID:        txn.UserID,
		ActorID:       adminID,
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Status:        string(domain.TransactionStatusRejected),
		Reason:        txn.RejectionReason,
	})
	logger.ExitMethod("verificationService.RejectTransaction", "transactionID", txn.ID, "type", txn.Type)
	return txn, nil
}

// resolve applies the decision and its balance effect in one store transaction. An
// approved deposit credits the wallet. A rejected withdrawal returns the amount that was
// held when it was requested.
func (s *verificationService) resolve(ctx context.Context, transactionID string, res domain.Resolution) (*domain.Transaction, error) {
	pending, err := s.store.Transactions().GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !pending.Type.RequiresReview() {
		return nil, fmt.Errorf("%w: %s transactions are not reviewed", domain.ErrInvalidRequest, pending.Type)
	}

	unlock, err := s.locker.Lock(ctx, pending.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var resolved *domain.Transaction
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		t, err := tx.Transactions().Resolve(ctx, transactionID, res)
		if err != nil {
			return err
		}
		credit := t.Type == domain.TransactionTypeDeposit && res.Status == domain.TransactionStatusApproved ||
			t.Type == domain.TransactionTypeWithdrawal && res.Status == domain.TransactionStatusRejected
		if credit {
			if _, err := tx.Accounts().AdjustBalance(ctx, t.UserID, domain.BalanceDelta{WalletDelta: t.Amount}); err != nil {
				return err
			}
		}
		resolved = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve transaction %s: %w", transactionID, err)
	}
	return resolved, nil
}

// reviewableDriver loads a driver account awaiting a decision other than next.
func reviewableDriver(ctx context.Context, tx repository.Store, userID string, next domain.VerificationStatus) (*domain.Account, error) {
	a, err := tx.Accounts().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a.AccountType != domain.AccountTypeDriver {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDriver, userID)
	}
	if a.VerificationStatus == next {
		return nil, fmt.Errorf("%w: documents of %s are already %s", domain.ErrAlreadyProcessed, userID, next)
	}
	return a, nil
}

func (s *verificationService) ApproveDriverDocuments(ctx context.Context, userID, adminID string) (err error) {
	defer observe(s.metrics, "ApproveDriverDocuments", time.Now(), &err)
	logger.EnterMethod("verificationService.ApproveDriverDocuments", "userID", userID, "adminID", adminID)

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	now := s.now()
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		a, err := reviewableDriver(ctx, tx, userID, domain.VerificationApproved)
		if err != nil {
			return err
		}
		docs := make(map[string]domain.Document, len(a.Documents))
		for name, d := range a.Documents {
			d.Status = domain.VerificationApproved
			d.VerifiedAt = &now
			d.VerifiedBy = adminID
			docs[name] = d
		}
		return tx.Accounts().UpdateVerification(ctx, userID, domain.VerificationDecision{
			Status:    domain.VerificationApproved,
			DecidedBy: adminID,
			DecidedAt: now,
			Documents: docs,
		})
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService.ApproveDriverDocuments", err, "userID", userID)
		return fmt.Errorf("failed to approve documents: %w", err)
	}

	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventApproval,
		Subject: domain.SubjectDocuments,
		UserID:  userID,
		ActorID: adminID,
		Status:  string(domain.VerificationApproved),
	})
	logger.ExitMethod("verificationService.ApproveDriverDocuments", "userID", userID)
	return nil
}

func (s *verificationService) RejectDriverDocuments(ctx context.Context, userID, reason, adminID string) (err error) {
	defer observe(s.metrics, "RejectDriverDocuments", time.Now(), &err)
	logger.EnterMethod("verificationService.RejectDriverDocuments", "userID", userID, "adminID", adminID)

	if err := required("rejection reason", reason); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := reviewableDriver(ctx, tx, userID, domain.VerificationRejected); err != nil {
			return err
		}
		return tx.Accounts().UpdateVerification(ctx, userID, domain.VerificationDecision{
			Status:    domain.VerificationRejected,
			Reason:    reason,
			DecidedBy: adminID,
			DecidedAt: s.now(),
		})
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService.RejectDriverDocuments", err, "userID", userID)
		return fmt.Errorf("failed to reject documents: %w", err)
	}

	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventRejection,
		Subject: domain.SubjectDocuments,
		UserID:  userID,
		ActorID: adminID,
		Status:  string(domain.VerificationRejected),
		Reason:  reason,
	})
	logger.ExitMethod("verificationService.RejectDriverDocuments", "userID", userID)
	return nil
}

func (s *verificationService) BlockUser(ctx context.Context, userID, reason, adminID string) error {
	if err := required("block reason", reason); err != nil {
		return err
	}
	if userID == adminID {
		return fmt.Errorf("%w: admins cannot block themselves", domain.ErrInvalidRequest)
	}
	return s.changeStatus(ctx, "BlockUser", userID, adminID, domain.StatusChange{
		Status: domain.AccountStatusBlocked,
		Reason: strings.TrimSpace(reason),
	})
}

func (s *verificationService) UnblockUser(ctx context.Context, userID, adminID string) error {
	return s.changeStatus(ctx, "UnblockUser", userID, adminID, domain.StatusChange{
		Status: domain.AccountStatusActive,
	})
}

func (s *verificationService) changeStatus(ctx context.Context, op, userID, adminID string, change domain.StatusChange) (err error) {
	defer observe(s.metrics, op, time.Now(), &err)
	logger.EnterMethod("verificationService."+op, "userID", userID, "adminID", adminID)

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	change.ChangedBy = adminID
	change.ChangedAt = s.now()
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		a, err := tx.Accounts().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if a.Status == change.Status {
			return fmt.Errorf("%w: account %s is already %s", domain.ErrAlreadyProcessed, userID, change.Status)
		}
		return tx.Accounts().UpdateStatus(ctx, userID, change)
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService."+op, err, "userID", userID)
		return fmt.Errorf("failed to update account status: %w", err)
	}

	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventAccountStatus,
		Subject: domain.SubjectAccount,
		UserID:  userID,
		ActorID: adminID,
		Status:  string(change.Status),
		Reason:  change.Reason,
	})
	logger.ExitMethod("verificationService."+op, "userID", userID, "status", change.Status)
	return nil
}

func (s *verificationService) ListPendingTransactions(ctx context.Context, adminID string, limit int) ([]domain.Transaction, error) {
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	txns, err := s.store.Transactions().List(ctx, repository.TransactionFilter{
		Status: domain.TransactionStatusPending,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	return txns, nil
}

func (s *verificationService) ListPendingDriverVerifications(ctx context.Context, adminID string, limit int) ([]domain.Account, error) {
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	drivers, err := s.store.Accounts().List(ctx, repository.AccountFilter{
		AccountType:        domain.AccountTypeDriver,
		VerificationStatus: domain.VerificationPending,
		Limit:              limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending drivers: %w", err)
	}
	return drivers, nil
}

// GetPlatformStats counts accounts and pending work. TotalEarnings is the sum of every
// commission record.
func (s *verificationService) GetPlatformStats(ctx context.Context, adminID string) (*domain.PlatformStats, error) {
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	accounts, err := s.store.Accounts().List(ctx, repository.AccountFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	pending, err := s.store.Transactions().List(ctx, repository.TransactionFilter{Status: domain.TransactionStatusPending})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	commissions, err := s.store.Transactions().List(ctx, repository.TransactionFilter{Type: domain.TransactionTypeCommission})
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}

	stats := &domain.PlatformStats{
		TotalUsers:          len(accounts),
		PendingTransactions: len(pending),
		TotalEarnings:       decimal.Zero,
	}
	for _, a := range accounts {
		if a.AccountType != domain.AccountTypeDriver {
			continue
		}
		stats.TotalDrivers++
		if a.VerificationStatus == domain.VerificationPending {
			stats.PendingVerifications++
		}
	}
	for _, c := range commissions {
		stats.TotalEarnings = stats.TotalEarnings.Add(c.Amount)
	}
	return stats, nil
}

// SendBroadcast announces message to every active account and returns how many were
// addressed. Delivery happens asynchronously through the dispatcher.
func (s *verificationService) SendBroadcast(ctx context.Context, message, adminID string) (n int, err error) {
	defer observe(s.metrics, "SendBroadcast", time.Now(), &err)

	if err := required("message", message); err != nil {
		return 0, err
	}

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return 0, err
	}
	active, err := s.store.Accounts().List(ctx, repository.AccountFilter{Status: domain.AccountStatusActive})
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventBroadcast,
		ActorID: adminID,
		Message: strings.TrimSpace(message),
	})
	logger.Info("Broadcast queued", "adminID", adminID, "recipients", len(active))
	return len(active), nil
}
