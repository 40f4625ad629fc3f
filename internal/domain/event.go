package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventDepositRequested    EventKind = "deposit_requested"
	EventWithdrawalRequested EventKind = "withdrawal_requested"
	EventRidePaid            EventKind = "ride_paid"
	EventRideEarned          EventKind = "ride_earned"
	EventApproval            EventKind = "approval"
	EventRejection           EventKind = "rejection"
	EventAccountStatus       EventKind = "account_status"
	EventBroadcast           EventKind = "broadcast"
	EventPendingReminder     EventKind = "pending_reminder"
)

type EventSubject string

const (
	SubjectTransaction EventSubject = "transaction"
	SubjectDocuments   EventSubject = "documents"
	SubjectAccount     EventSubject = "account"
)

// Event is emitted after a ledger or verification change has been committed.
type Event struct {
	ID            string          `json:"id"`
	Kind          EventKind       `json:"kind"`
	Subject       EventSubject    `json:"subject,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	RideID        string          `json:"ride_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method,omitempty"`
	Status        string          `json:"status,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Message       string          `json:"message,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
