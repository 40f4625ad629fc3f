package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

const backend = "postgres"

// dbtx is satisfied by both *sql.DB and *sql.Tx so that every repository method runs
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db   *sql.DB
	conn dbtx
	inTx bool

	accounts      *accountRepository
	transactions  *transactionRepository
	notifications *notificationRepository
}

func NewStore(db *sql.DB) *Store {
	return newStore(db, db, false)
}

func newStore(db *sql.DB, conn dbtx, inTx bool) *Store {
	return &Store{
		db:            db,
		conn:          conn,
		inTx:          inTx,
		accounts:      &accountRepository{db: conn, lockRows: inTx},
		transactions:  &transactionRepository{db: conn, lockRows: inTx},
		notifications: &notificationRepository{db: conn},
	}
}

func (s *Store) Accounts() repository.AccountRepository           { return s.accounts }
func (s *Store) Transactions() repository.TransactionRepository   { return s.transactions }
func (s *Store) Notifications() repository.NotificationRepository { return s.notifications }

// RunInTx runs fn inside one database transaction. Rows read through the transaction-bound
// store are locked with FOR UPDATE until commit. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	logger.StoreCall(backend, "BEGIN")
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		err = translateError(err)
		logger.StoreResult(backend, "BEGIN", 0, err)
		return err
	}

	if err := fn(ctx, newStore(s.db, sqlTx, true)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		err = translateError(err)
		logger.StoreResult(backend, "COMMIT", 0, err)
		return err
	}
	return nil
}

// translateError maps driver failures onto domain errors. Unique violations mean the
// record was already written; connection and deadline failures are transient.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, pqErr.Constraint)
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "57P01",
			strings.HasPrefix(string(pqErr.Code), "08"):
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func limitClause(limit int, args []any) (string, []any) {
	if limit <= 0 {
		return "", args
	}
	args = append(args, limit)
	return fmt.Sprintf(" LIMIT $%d", len(args)), args
}
