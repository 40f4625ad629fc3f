package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Email sends plain-text mail through SendGrid.
type Email struct {
	client    mailSender
	fromEmail string
	fromName  string
}

func NewEmail(apiKey, fromEmail, fromName string) *Email {
	return &Email{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (e *Email) Name() string { return ChannelEmail }

func (e *Email) Address(a *domain.Account) string { return a.Email }

func (e *Email) Send(ctx context.Context, m Message) (string, error) {
	if m.Recipient == "" {
		return "", errors.New("recipient has no email address")
	}
	subject := m.Title
	if subject == "" {
		subject = "DriveKR wallet update"
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(e.fromName, e.fromEmail),
		subject,
		mail.NewEmail("", m.Recipient),
		m.Body,
		"",
	)

	logger.ExternalServiceCall("sendgrid", "send", "to", m.Recipient)
	resp, err := e.client.SendWithContext(ctx, message)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "to", m.Recipient)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	var ref string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		ref = ids[0]
	}
	return ref, nil
}
