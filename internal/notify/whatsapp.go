package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode"

	"drivekr-wallet-backend/internal/domain"
)

var errNoPhone = errors.New("recipient has no phone number")

// WhatsApp produces wa.me click-to-chat links. Nothing is sent from the server: the link is
// the delivery, opened by an admin or served to the recipient through the HTTP redirect.
type WhatsApp struct{}

func NewWhatsApp() *WhatsApp { return &WhatsApp{} }

func (w *WhatsApp) Name() string { return ChannelWhatsApp }

func (w *WhatsApp) Address(a *domain.Account) string { return a.PhoneNumber }

func (w *WhatsApp) Send(_ context.Context, m Message) (string, error) {
	return Link(m.Recipient, m.Body)
}

// Link builds https://wa.me/<digits>?text=<message>. The phone number keeps digits only,
// as wa.me requires.
func Link(phone, text string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return "", errNoPhone
	}
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + escaped, nil
}
