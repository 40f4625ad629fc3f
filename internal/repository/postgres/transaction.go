package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

const transactionColumns = `id, user_id, type, amount, status, payment_method, transaction_reference,
	withdrawal_method, account_number, ride_id, description, rejection_reason, created_at, updated_at,
	verified_at, verified_by`

type transactionRepository struct {
	db       dbtx
	lockRows bool
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t          domain.Transaction
		verifiedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.PaymentMethod, &t.TransactionReference,
		&t.WithdrawalMethod, &t.AccountNumber, &t.RideID, &t.Description, &t.RejectionReason, &t.CreatedAt,
		&t.UpdatedAt, &verifiedAt, &t.VerifiedBy)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		v := verifiedAt.Time
		t.VerifiedAt = &v
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Create", "userID", t.UserID, "type", t.Type, "amount", t.Amount)

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt

	query := `INSERT INTO transactions (id, user_id, type, amount, status, payment_method, transaction_reference,
	          withdrawal_method, account_number, ride_id, description, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	logger.StoreCall(backend, "INSERT transactions", "transactionID", t.ID)
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.Type, t.Amount, t.Status, t.PaymentMethod,
		t.TransactionReference, t.WithdrawalMethod, t.AccountNumber, t.RideID, t.Description, t.CreatedAt, t.UpdatedAt)
	err = translateError(err)
	logger.StoreResult(backend, "INSERT transactions", 1, err, "transactionID", t.ID)

	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Create", err, "transactionID", t.ID)
		return err
	}
	logger.ExitMethod("transactionRepository.Create", "transactionID", t.ID)
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1` + forUpdate(r.lockRows)
	logger.StoreCall(backend, "SELECT transactions", "transactionID", id)
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if err != nil {
		err = translateError(err)
		logger.StoreResult(backend, "SELECT transactions", 0, err, "transactionID", id)
		return nil, err
	}
	return t, nil
}

func (r *transactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.RideID != "" {
		add("ride_id = $%d", filter.RideID)
	}
	if !filter.CreatedBefore.IsZero() {
		add("created_at < $%d", filter.CreatedBefore)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit, args := limitClause(filter.Limit, args)
	query += limit

	logger.StoreCall(backend, "SELECT transactions", "filter", filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, translateError(err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	logger.StoreResult(backend, "SELECT transactions", int64(len(txns)), nil)
	return txns, nil
}

// Resolve is a compare-and-set on status: only a pending row is updated, so two admins
// racing on the same transaction cannot both succeed.
func (r *transactionRepository) Resolve(ctx context.Context, id string, res domain.Resolution) (*domain.Transaction, error) {
	logger.EnterMethod("transactionRepository.Resolve", "transactionID", id, "status", res.Status)

	if !domain.TransactionStatusPending.CanTransition(res.Status) {
		return nil, fmt.Errorf("%w: cannot resolve to %s", domain.ErrInvalidRequest, res.Status)
	}

	query := `UPDATE transactions
	          SET status = $2, rejection_reason = $3, verified_at = $4, verified_by = $5, updated_at = $4
	          WHERE id = $1 AND status = 'pending'
	          RETURNING ` + transactionColumns
	logger.StoreCall(backend, "UPDATE transactions status", "transactionID", id)
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, res.Status, res.Reason, res.VerifiedAt, res.VerifiedBy))
	if errors.Is(err, sql.ErrNoRows) {
		err = r.explainUnresolved(ctx, id)
	} else {
		err = translateError(err)
	}
	logger.StoreResult(backend, "UPDATE transactions status", 1, err, "transactionID", id)

	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Resolve", err, "transactionID", id)
		return nil, err
	}
	logger.ExitMethod("transactionRepository.Resolve", "transactionID", id, "status", t.Status)
	return t, nil
}

func (r *transactionRepository) explainUnresolved(ctx context.Context, id string) error {
	var status domain.TransactionStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if err != nil {
		return translateError(err)
	}
	return fmt.Errorf("%w: transaction %s is %s", domain.ErrAlreadyProcessed, id, status)
}
