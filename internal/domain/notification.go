package domain

import "time"

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusFailed    NotificationStatus = "failed"
)

type Notification struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Kind        EventKind          `json:"kind"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	Recipient   string             `json:"recipient"` // phone number or email the channel sends to
	Channel     string             `json:"channel"`
	Status      NotificationStatus `json:"status"`
	DeliveryRef string             `json:"delivery_ref,omitempty"` // e.g. wa.me deep link
	Attempts    int                `json:"attempts"`
	LastError   string             `json:"last_error,omitempty"`
	Read        bool               `json:"read"`
	SentBy      string             `json:"sent_by,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Delivery records the outcome of one delivery attempt.
type Delivery struct {
	Status      NotificationStatus
	DeliveryRef string
	Error       string
	At          time.Time
}
