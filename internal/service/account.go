package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

const defaultNotificationLimit = 50

type accountService struct {
	store        repository.Store
	storeTimeout time.Duration
}

func NewAccountService(store repository.Store, storeTimeout time.Duration) AccountService {
	return &accountService{store: store, storeTimeout: storeTimeout}
}

// RegisterAccount creates the wallet record for a signed-up user. Balances always start
// at zero and drivers start with their documents pending review.
func (s *accountService) RegisterAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	logger.EnterMethod("accountService.RegisterAccount", "userID", account.ID, "type", account.AccountType)

	if err := required("user id", account.ID); err != nil {
		return nil, err
	}
	if !account.AccountType.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", domain.ErrInvalidRequest, account.AccountType)
	}

	a := *account
	a.DisplayName = strings.TrimSpace(a.DisplayName)
	a.Status = domain.AccountStatusActive
	a.WalletBalance = decimal.Zero
	a.TotalSpent = decimal.Zero
	a.TotalEarnings = decimal.Zero
	a.RejectionReason, a.VerifiedAt, a.VerifiedBy = "", nil, ""
	a.BlockedAt, a.BlockedBy, a.BlockReason = nil, "", ""
	if a.AccountType == domain.AccountTypeDriver {
		a.VerificationStatus = domain.VerificationPending
		docs := make(map[string]domain.Document, len(account.Documents))
		for name, d := range account.Documents {
			d.Status, d.VerifiedAt, d.VerifiedBy = domain.VerificationPending, nil, ""
			docs[name] = d
		}
		a.Documents = docs
	} else {
		a.VerificationStatus = ""
		a.Documents = nil
	}

	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Accounts().Create(ctx, &a); err != nil {
		logger.ExitMethodWithError("accountService.RegisterAccount", err, "userID", a.ID)
		return nil, fmt.Errorf("failed to register account: %w", err)
	}
	logger.ExitMethod("accountService.RegisterAccount", "userID", a.ID)
	return &a, nil
}

func (s *accountService) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Accounts().GetByID(ctx, userID)
}

func (s *accountService) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	ns, err := s.store.Notifications().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return ns, nil
}

func (s *accountService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Notifications().MarkRead(ctx, notificationID, userID)
}
