// Package notify delivers formatted messages to people over an outbound channel.
package notify

import (
	"context"

	"drivekr-wallet-backend/internal/domain"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

type Message struct {
	Recipient string
	Title     string
	Body      string
}

// Channel sends one message. The returned reference identifies the delivery (a deep link,
// a provider message id) and is stored on the notification record.
type Channel interface {
	Name() string
	// Address returns the account's address on this channel, or "" when it has none.
	Address(a *domain.Account) string
	Send(ctx context.Context, m Message) (ref string, err error)
}
