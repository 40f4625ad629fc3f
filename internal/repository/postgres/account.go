package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

const accountColumns = `id, display_name, phone_number, email, account_type, status, wallet_balance,
	total_spent, total_earnings, verification_status, documents, rejection_reason, verified_at,
	verified_by, blocked_at, blocked_by, block_reason, created_at, updated_at`

type accountRepository struct {
	db       dbtx
	lockRows bool
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a          domain.Account
		docs       []byte
		verifiedAt sql.NullTime
		blockedAt  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.DisplayName, &a.PhoneNumber, &a.Email, &a.AccountType, &a.Status,
		&a.WalletBalance, &a.TotalSpent, &a.TotalEarnings, &a.VerificationStatus, &docs,
		&a.RejectionReason, &verifiedAt, &a.VerifiedBy, &blockedAt, &a.BlockedBy, &a.BlockReason,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &a.Documents); err != nil {
			return nil, fmt.Errorf("decode documents of account %s: %w", a.ID, err)
		}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		a.VerifiedAt = &t
	}
	if blockedAt.Valid {
		t := blockedAt.Time
		a.BlockedAt = &t
	}
	return &a, nil
}

func encodeDocuments(docs map[string]domain.Document) ([]byte, error) {
	if docs == nil {
		docs = map[string]domain.Document{}
	}
	return json.Marshal(docs)
}

func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	logger.EnterMethod("accountRepository.Create", "accountID", a.ID, "type", a.AccountType)

	docs, err := encodeDocuments(a.Documents)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.Create", err, "reason", "failed to marshal documents")
		return err
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `INSERT INTO accounts (id, display_name, phone_number, email, account_type, status,
	          wallet_balance, total_spent, total_earnings, verification_status, documents, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	logger.StoreCall(backend, "INSERT accounts", "accountID", a.ID)
	_, err = r.db.ExecContext(ctx, query, a.ID, a.DisplayName, a.PhoneNumber, a.Email, a.AccountType, a.Status,
		a.WalletBalance, a.TotalSpent, a.TotalEarnings, a.VerificationStatus, string(docs), a.CreatedAt, a.UpdatedAt)
	err = translateError(err)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		err = fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
	}
	logger.StoreResult(backend, "INSERT accounts", 1, err, "accountID", a.ID)

	if err != nil {
		logger.ExitMethodWithError("accountRepository.Create", err, "accountID", a.ID)
		return err
	}
	logger.ExitMethod("accountRepository.Create", "accountID", a.ID)
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1` + forUpdate(r.lockRows)
	logger.StoreCall(backend, "SELECT accounts", "accountID", id)
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	if err != nil {
		err = translateError(err)
		logger.StoreResult(backend, "SELECT accounts", 0, err, "accountID", id)
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) List(ctx context.Context, filter repository.AccountFilter) ([]domain.Account, error) {
	var (
		conds []string
		args  []any
	)
	if filter.AccountType != "" {
		args = append(args, filter.AccountType)
		conds = append(conds, fmt.Sprintf("account_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.VerificationStatus != "" {
		args = append(args, filter.VerificationStatus)
		conds = append(conds, fmt.Sprintf("verification_status = $%d", len(args)))
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit, args := limitClause(filter.Limit, args)
	query += limit

	logger.StoreCall(backend, "SELECT accounts", "filter", filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, translateError(err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	logger.StoreResult(backend, "SELECT accounts", int64(len(accounts)), nil)
	return accounts, nil
}

// AdjustBalance relies on the WHERE guard so that concurrent debits can never take the
// balance below zero even without a row lock.
func (r *accountRepository) AdjustBalance(ctx context.Context, id string, delta domain.BalanceDelta) (decimal.Decimal, error) {
	logger.EnterMethod("accountRepository.AdjustBalance", "accountID", id, "walletDelta", delta.WalletDelta)

	query := `UPDATE accounts
	          SET wallet_balance = wallet_balance + $2,
	              total_spent = total_spent + $3,
	              total_earnings = total_earnings + $4,
	              updated_at = $5
	          WHERE id = $1 AND wallet_balance + $2 >= 0
	          RETURNING wallet_balance`
	logger.StoreCall(backend, "UPDATE accounts balance", "accountID", id)

	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, id, delta.WalletDelta, delta.SpentDelta, delta.EarningsDelta, time.Now().UTC()).
		Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.missOrShort(ctx, id)
	} else {
		err = translateError(err)
	}
	logger.StoreResult(backend, "UPDATE accounts balance", 1, err, "accountID", id)

	if err != nil {
		logger.ExitMethodWithError("accountRepository.AdjustBalance", err, "accountID", id)
		return decimal.Zero, err
	}
	logger.ExitMethod("accountRepository.AdjustBalance", "accountID", id, "balance", balance)
	return balance, nil
}

// missOrShort explains why a guarded update matched no row.
func (r *accountRepository) missOrShort(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return translateError(err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return domain.ErrInsufficientBalance
}

func (r *accountRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error {
	// Unblocking clears the block audit fields.
	var (
		blockedAt           any
		blockedBy, blockWhy string
	)
	if change.Status == domain.AccountStatusBlocked {
		blockedAt, blockedBy, blockWhy = change.ChangedAt, change.ChangedBy, change.Reason
	}

	query := `UPDATE accounts SET status = $2, blocked_at = $3, blocked_by = $4, block_reason = $5, updated_at = $6
	          WHERE id = $1`
	logger.StoreCall(backend, "UPDATE accounts status", "accountID", id, "status", change.Status)
	res, err := r.db.ExecContext(ctx, query, id, change.Status, blockedAt, blockedBy, blockWhy, change.ChangedAt)
	return r.checkAffected(res, err, id, "UPDATE accounts status")
}

// UpdateVerification leaves the stored documents alone when d.Documents is nil.
func (r *accountRepository) UpdateVerification(ctx context.Context, id string, d domain.VerificationDecision) error {
	var docs any
	if d.Documents != nil {
		encoded, err := encodeDocuments(d.Documents)
		if err != nil {
			return err
		}
		docs = string(encoded)
	}

	query := `UPDATE accounts
	          SET verification_status = $2, rejection_reason = $3, verified_at = $4, verified_by = $5,
	              documents = COALESCE($6::jsonb, documents), updated_at = $4
	          WHERE id = $1`
	logger.StoreCall(backend, "UPDATE accounts verification", "accountID", id, "status", d.Status)
	res, err := r.db.ExecContext(ctx, query, id, d.Status, d.Reason, d.DecidedAt, d.DecidedBy, docs)
	return r.checkAffected(res, err, id, "UPDATE accounts verification")
}

func (r *accountRepository) checkAffected(res sql.Result, err error, id, op string) error {
	if err != nil {
		err = translateError(err)
		logger.StoreResult(backend, op, 0, err, "accountID", id)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translateError(err)
	}
	logger.StoreResult(backend, op, n, nil, "accountID", id)
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return nil
}
