package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

type accountRepository struct {
	s *Store
}

func (r accountRepository) ref(id string) *fs.DocumentRef {
	return r.s.client.Collection(colUsers).Doc(id)
}

func (r accountRepository) Create(ctx context.Context, a *domain.Account) error {
	logger.EnterMethod("firestore.accountRepository.Create", "accountID", a.ID, "type", a.AccountType)

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	err := r.s.exec(ctx, "create users", func(u *unit) error {
		_, err := u.account(a.ID)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		u.create(r.ref(a.ID), accountToMap(a))
		cp := *a
		u.accounts[a.ID] = &cp
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("firestore.accountRepository.Create", err, "accountID", a.ID)
		return err
	}
	logger.ExitMethod("firestore.accountRepository.Create", "accountID", a.ID)
	return nil
}

func (r accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if r.s.unit != nil {
		a, err := r.s.unit.account(id)
		if err != nil {
			return nil, err
		}
		cp := *a
		return &cp, nil
	}
	logger.StoreCall(backend, "get users", "accountID", id)
	snap, err := r.ref(id).Get(ctx)
	return decodeAccount(id, snap, err)
}

func (r accountRepository) List(ctx context.Context, filter repository.AccountFilter) ([]domain.Account, error) {
	q := r.s.client.Collection(colUsers).Query
	if filter.AccountType != "" {
		q = q.Where("accountType", "==", string(filter.AccountType))
	}
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if filter.VerificationStatus != "" {
		q = q.Where("verificationStatus", "==", string(filter.VerificationStatus))
	}
	q = q.OrderBy("createdAt", fs.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	logger.StoreCall(backend, "query users", "filter", filter)
	accounts, err := collect(r.s.documents(ctx, q), filter.Limit, func(snap *fs.DocumentSnapshot) (*domain.Account, bool, error) {
		a, err := accountFromMap(snap.Ref.ID, snap.Data())
		return a, err == nil, err
	})
	logger.StoreResult(backend, "query users", int64(len(accounts)), err)
	return accounts, err
}

// AdjustBalance reads and writes the balance in one transaction, so a concurrent writer
// makes Firestore retry the whole read-check-write.
func (r accountRepository) AdjustBalance(ctx context.Context, id string, delta domain.BalanceDelta) (decimal.Decimal, error) {
	logger.EnterMethod("firestore.accountRepository.AdjustBalance", "accountID", id, "walletDelta", delta.WalletDelta)

	var balance decimal.Decimal
	err := r.s.exec(ctx, "update users balance", func(u *unit) error {
		a, err := u.account(id)
		if err != nil {
			return err
		}
		next := a.WalletBalance.Add(delta.WalletDelta)
		if next.IsNegative() {
			return domain.ErrInsufficientBalance
		}
		a.WalletBalance = next
		a.TotalSpent = a.TotalSpent.Add(delta.SpentDelta)
		a.TotalEarnings = a.TotalEarnings.Add(delta.EarningsDelta)
		a.UpdatedAt = time.Now().UTC()

		fields := map[string]any{
			"walletBalance": money(a.WalletBalance),
			"updatedAt":     a.UpdatedAt,
		}
		if !delta.SpentDelta.IsZero() {
			fields["totalSpent"] = money(a.TotalSpent)
		}
		if !delta.EarningsDelta.IsZero() {
			fields["totalEarnings"] = money(a.TotalEarnings)
		}
		u.update(r.ref(id), fields)
		balance = next
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("firestore.accountRepository.AdjustBalance", err, "accountID", id)
		return decimal.Zero, err
	}
	logger.ExitMethod("firestore.accountRepository.AdjustBalance", "accountID", id, "balance", balance)
	return balance, nil
}

func (r accountRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error {
	return r.s.exec(ctx, "update users status", func(u *unit) error {
		a, err := u.account(id)
		if err != nil {
			return err
		}
		fields := map[string]any{
			"status":    string(change.Status),
			"updatedAt": change.ChangedAt,
		}
		a.Status, a.UpdatedAt = change.Status, change.ChangedAt
		if change.Status == domain.AccountStatusBlocked {
			at := change.ChangedAt
			a.BlockedAt, a.BlockedBy, a.BlockReason = &at, change.ChangedBy, change.Reason
			fields["blockedAt"] = change.ChangedAt
			fields["blockedBy"] = change.ChangedBy
			fields["blockReason"] = change.Reason
		} else {
			a.BlockedAt, a.BlockedBy, a.BlockReason = nil, "", ""
			fields["blockedAt"] = fs.Delete
			fields["blockedBy"] = fs.Delete
			fields["blockReason"] = fs.Delete
		}
		u.update(r.ref(id), fields)
		return nil
	})
}

func (r accountRepository) UpdateVerification(ctx context.Context, id string, d domain.VerificationDecision) error {
	return r.s.exec(ctx, "update users verification", func(u *unit) error {
		a, err := u.account(id)
		if err != nil {
			return err
		}
		at := d.DecidedAt
		a.VerificationStatus, a.RejectionReason = d.Status, d.Reason
		a.VerifiedAt, a.VerifiedBy = &at, d.DecidedBy
		a.UpdatedAt = d.DecidedAt

		fields := map[string]any{
			"verificationStatus": string(d.Status),
			"isVerified":         d.Status == domain.VerificationApproved,
			"verifiedAt":         d.DecidedAt,
			"verifiedBy":         d.DecidedBy,
			"updatedAt":          d.DecidedAt,
		}
		if d.Reason != "" {
			fields["rejectionReason"] = d.Reason
		} else {
			fields["rejectionReason"] = fs.Delete
		}
		if d.Documents != nil {
			a.Documents = d.Documents
			fields["documents"] = documentsToMap(d.Documents)
		}
		u.update(r.ref(id), fields)
		return nil
	})
}
