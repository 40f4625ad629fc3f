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

const notificationColumns = `id, user_id, kind, title, message, recipient, channel, status, delivery_ref,
	attempts, last_error, is_read, sent_by, created_at, updated_at`

type notificationRepository struct {
	db dbtx
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Recipient, &n.Channel, &n.Status,
		&n.DeliveryRef, &n.Attempts, &n.LastError, &n.Read, &n.SentBy, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func prepareNotification(n *domain.Notification, now time.Time) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = domain.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.CreateBatch(ctx, []*domain.Notification{n})
}

// CreateBatch writes all notifications with a single multi-row INSERT.
func (r *notificationRepository) CreateBatch(ctx context.Context, ns []*domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	logger.EnterMethod("notificationRepository.CreateBatch", "count", len(ns))

	const perRow = 11
	now := time.Now().UTC()
	values := make([]string, 0, len(ns))
	args := make([]any, 0, len(ns)*perRow)
	for i, n := range ns {
		prepareNotification(n, now)
		ph := make([]string, perRow)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*perRow+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, n.ID, n.UserID, n.Kind, n.Title, n.Message, n.Recipient, n.Channel, n.Status,
			n.SentBy, n.CreatedAt, n.UpdatedAt)
	}

	query := `INSERT INTO notifications (id, user_id, kind, title, message, recipient, channel, status,
	          sent_by, created_at, updated_at) VALUES ` + strings.Join(values, ", ")
	logger.StoreCall(backend, "INSERT notifications", "count", len(ns))
	_, err := r.db.ExecContext(ctx, query, args...)
	err = translateError(err)
	logger.StoreResult(backend, "INSERT notifications", int64(len(ns)), err)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.CreateBatch", err, "count", len(ns))
		return err
	}
	logger.ExitMethod("notificationRepository.CreateBatch", "count", len(ns))
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, translateError(err)
	}
	return n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	args := []any{userID}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	lim, args := limitClause(limit, args)
	return r.query(ctx, query+lim, args...)
}

func (r *notificationRepository) ListUndelivered(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]domain.Notification, error) {
	args := []any{maxAttempts, olderThan}
	query := `SELECT ` + notificationColumns + ` FROM notifications
	          WHERE status IN ('pending', 'failed') AND attempts < $1 AND created_at < $2
	          ORDER BY created_at ASC`
	lim, args := limitClause(limit, args)
	return r.query(ctx, query+lim, args...)
}

func (r *notificationRepository) query(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	logger.StoreCall(backend, "SELECT notifications")
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, translateError(err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	logger.StoreResult(backend, "SELECT notifications", int64(len(notes)), nil)
	return notes, nil
}

func (r *notificationRepository) RecordDelivery(ctx context.Context, id string, d domain.Delivery) error {
	query := `UPDATE notifications
	          SET status = $2, delivery_ref = CASE WHEN $3 = '' THEN delivery_ref ELSE $3 END,
	              last_error = $4, attempts = attempts + 1, updated_at = $5
	          WHERE id = $1`
	logger.StoreCall(backend, "UPDATE notifications delivery", "notificationID", id, "status", d.Status)
	res, err := r.db.ExecContext(ctx, query, id, d.Status, d.DeliveryRef, d.Error, d.At)
	return notificationAffected(res, err, id)
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	query := `UPDATE notifications SET is_read = TRUE, updated_at = $3 WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID, time.Now().UTC())
	return notificationAffected(res, err, id)
}

func notificationAffected(res sql.Result, err error, id string) error {
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translateError(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
	}
	return nil
}
