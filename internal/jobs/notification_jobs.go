package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

// RetryFailedNotifications re-delivers notifications whose earlier attempts failed or never
// completed, until they reach notification.max_attempts.
func (jr *JobRunner) RetryFailedNotifications() {
	jr.runWithRecovery("RetryFailedNotifications", jr.retryFailedNotifications)
}

func (jr *JobRunner) retryFailedNotifications(ctx context.Context) (int, error) {
	olderThan := jr.now().Add(-retryGracePeriod)
	pending, err := jr.store.Notifications().ListUndelivered(ctx, jr.config.Notification.MaxAttempts, olderThan, retryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list undelivered notifications: %w", err)
	}

	delivered := 0
	for _, n := range pending {
		if err := jr.dispatcher.Redeliver(ctx, n); err != nil {
			logger.Warn("Notification redelivery failed",
				"notificationID", n.ID,
				"channel", n.Channel,
				"attempts", n.Attempts+1,
				"error", err)
			continue
		}
		delivered++
		logger.Debug("Notification redelivered", "notificationID", n.ID, "channel", n.Channel)
	}

	logger.Info("Notification retries finished", "candidates", len(pending), "delivered", delivered)
	return delivered, nil
}

// RemindPendingTransactions alerts the admin inbox about deposits and withdrawals that have
// waited longer than scheduler.pending_reminder_after_hours for review.
func (jr *JobRunner) RemindPendingTransactions() {
	jr.runWithRecovery("RemindPendingTransactions", jr.remindPendingTransactions)
}

func (jr *JobRunner) remindPendingTransactions(ctx context.Context) (int, error) {
	now := jr.now()
	cutoff := now.Add(-time.Duration(jr.config.Scheduler.PendingReminderAfterHours) * time.Hour)

	txns, err := jr.store.Transactions().List(ctx, repository.TransactionFilter{
		Status:        domain.TransactionStatusPending,
		CreatedBefore: cutoff,
		Limit:         reminderBatch,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	count := 0
	for _, txn := range txns {
		method := txn.PaymentMethod
		if method == "" {
			method = txn.WithdrawalMethod
		}
		event := domain.Event{
			ID:            uuid.NewString(),
			Kind:          domain.EventPendingReminder,
			Subject:       domain.SubjectTransaction,
			UserID:        txn.UserID,
			TransactionID: txn.ID,
			Amount:        txn.Amount,
			Method:        method,
			Status:        string(txn.Status),
			OccurredAt:    now,
		}
		if err := jr.dispatcher.Handle(ctx, event); err != nil {
			logger.Error("Failed to send pending transaction reminder",
				"transactionID", txn.ID,
				"userID", txn.UserID,
				"error", err)
			continue
		}
		count++
	}

	logger.Info("Pending transaction reminders sent", "count", count)
	return count, nil
}
