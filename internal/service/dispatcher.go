package service

import (
	"context"
	"fmt"
	"time"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/notify"
	"drivekr-wallet-backend/internal/repository"
)

const (
	// AdminInboxID owns the notifications addressed to the operations team.
	AdminInboxID = "admin"

	channelInApp = "in_app"
)

type DispatcherConfig struct {
	AdminPhone   string
	AdminEmail   string
	StoreTimeout time.Duration
}

type notificationDispatcher struct {
	store    repository.Store
	channels []notify.Channel
	metrics  MetricsCollector
	cfg      DispatcherConfig
	now      func() time.Time
}

// NewNotificationDispatcher returns a dispatcher that tries channels in order and sends
// each notification on the first one that has an address for the recipient.
func NewNotificationDispatcher(
	store repository.Store,
	channels []notify.Channel,
	metrics MetricsCollector,
	cfg DispatcherConfig,
) NotificationDispatcher {
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	return &notificationDispatcher{
		store:    store,
		channels: channels,
		metrics:  metrics,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *notificationDispatcher) Format(e domain.Event) (string, string) {
	amount := e.Amount.String()
	switch e.Kind {
	case domain.EventDepositRequested:
		return "New Payment Request", fmt.Sprintf(
			"New Payment Request\n\nUser ID: %s\nAmount: Rs %s\nMethod: %s\nTransaction ID: %s\n\nPlease verify and approve.",
			e.UserID, amount, e.Method, e.TransactionID)
	case domain.EventWithdrawalRequested:
		return "Withdrawal Requested", "Withdrawal request submitted. It will be processed within 24-48 hours."
	case domain.EventRidePaid:
		return "Ride Payment", fmt.Sprintf("Rs %s has been deducted from your wallet for ride %s.", amount, e.RideID)
	case domain.EventRideEarned:
		return "Ride Earnings", fmt.Sprintf("You earned Rs %s from ride %s.", amount, e.RideID)
	case domain.EventApproval:
		if e.Subject == domain.SubjectDocuments {
			return "Documents Approved", "Your driver documents have been approved! You can now go online and accept rides."
		}
		return "Transaction Approved", fmt.Sprintf("Your transaction of Rs %s has been approved. Your wallet has been updated.", amount)
	case domain.EventRejection:
		if e.Subject == domain.SubjectDocuments {
			return "Documents Rejected", fmt.Sprintf(
				"Your document verification has been rejected. Reason: %s. Please upload correct documents and try again.", e.Reason)
		}
		return "Transaction Rejected", fmt.Sprintf(
			"Your transaction has been rejected. Reason: %s. Please contact support for more information.", e.Reason)
	case domain.EventAccountStatus:
		if e.Status == string(domain.AccountStatusBlocked) {
			return "Account Blocked", fmt.Sprintf("Your account has been blocked. Reason: %s.", e.Reason)
		}
		return "Account Reactivated", "Your account has been reactivated."
	case domain.EventBroadcast:
		return "Admin Broadcast", e.Message
	case domain.EventPendingReminder:
		return "Pending Transaction Reminder", fmt.Sprintf(
			"Reminder: transaction %s from user %s for Rs %s is still pending. Please verify and approve.",
			e.TransactionID, e.UserID, amount)
	}
	return "Notification", e.Message
}

// Handle stores one notification per recipient and attempts delivery. Only store
// failures are returned; channel failures are recorded on the notification for the retry
// job.
func (d *notificationDispatcher) Handle(ctx context.Context, e domain.Event) error {
	ctx, cancel := bounded(ctx, d.cfg.StoreTimeout)
	defer cancel()

	recipients, err := d.recipients(ctx, e)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients for %s: %w", e.Kind, err)
	}
	if len(recipients) == 0 {
		logger.Debug("No recipients for event", "kind", e.Kind, "eventID", e.ID)
		return nil
	}

	title, message := d.Format(e)
	batch := make([]*domain.Notification, 0, len(recipients))
	channels := make([]notify.Channel, 0, len(recipients))
	for i := range recipients {
		n := &domain.Notification{
			UserID:  recipients[i].ID,
			Kind:    e.Kind,
			Title:   title,
			Message: message,
			Channel: channelInApp,
			Status:  domain.NotificationStatusDelivered,
		}
		if e.Kind == domain.EventBroadcast {
			n.SentBy = e.ActorID
		}
		ch, addr := d.route(&recipients[i])
		if ch != nil {
			n.Channel, n.Recipient, n.Status = ch.Name(), addr, domain.NotificationStatusPending
		}
		batch = append(batch, n)
		channels = append(channels, ch)
	}

	if err := d.store.Notifications().CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to store notifications: %w", err)
	}

	for i, n := range batch {
		if channels[i] == nil {
			d.metrics.RecordNotification(channelInApp, n.Status)
			continue
		}
		if err := d.deliver(ctx, channels[i], n); err != nil {
			logger.Warn("Notification delivery failed", "notificationID", n.ID, "channel", n.Channel, "error", err)
		}
	}
	return nil
}

// Redeliver retries a stored notification on the channel it was routed to.
func (d *notificationDispatcher) Redeliver(ctx context.Context, n domain.Notification) error {
	for _, ch := range d.channels {
		if ch.Name() == n.Channel {
			return d.deliver(ctx, ch, &n)
		}
	}
	return fmt.Errorf("channel %q is not configured", n.Channel)
}

func (d *notificationDispatcher) deliver(ctx context.Context, ch notify.Channel, n *domain.Notification) error {
	ref, sendErr := ch.Send(ctx, notify.Message{Recipient: n.Recipient, Title: n.Title, Body: n.Message})

	delivery := domain.Delivery{Status: domain.NotificationStatusDelivered, DeliveryRef: ref, At: d.now()}
	if sendErr != nil {
		delivery = domain.Delivery{Status: domain.NotificationStatusFailed, Error: sendErr.Error(), At: d.now()}
	}
	d.metrics.RecordNotification(ch.Name(), delivery.Status)

	if err := d.store.Notifications().RecordDelivery(ctx, n.ID, delivery); err != nil {
		logger.Error("Failed to record notification delivery", "notificationID", n.ID, "error", err)
		if sendErr == nil {
			return err
		}
	}
	return sendErr
}

// route picks the first channel with an address for a.
func (d *notificationDispatcher) route(a *domain.Account) (notify.Channel, string) {
	for _, ch := range d.channels {
		if addr := ch.Address(a); addr != "" {
			return ch, addr
		}
	}
	return nil, ""
}

func (d *notificationDispatcher) recipients(ctx context.Context, e domain.Event) ([]domain.Account, error) {
	switch e.Kind {
	case domain.EventDepositRequested, domain.EventPendingReminder:
		return []domain.Account{{
			ID:          AdminInboxID,
			AccountType: domain.AccountTypeAdmin,
			PhoneNumber: d.cfg.AdminPhone,
			Email:       d.cfg.AdminEmail,
		}}, nil
	case domain.EventBroadcast:
		return d.store.Accounts().List(ctx, repository.AccountFilter{Status: domain.AccountStatusActive})
	}
	if e.UserID == "" {
		return nil, nil
	}
	a, err := d.store.Accounts().GetByID(ctx, e.UserID)
	if err != nil {
		return nil, err
	}
	return []domain.Account{*a}, nil
}
