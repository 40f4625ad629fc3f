package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
)

func TestLink(t *testing.T) {
	link, err := Link("+91 98000-00000", "Amount: Rs 500\n\nPlease verify & approve.")
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/919800000000?text=Amount%3A%20Rs%20500%0A%0APlease%20verify%20%26%20approve.", link)

	_, err = Link("n/a", "hi")
	assert.Error(t, err)
}

func TestWhatsApp(t *testing.T) {
	w := NewWhatsApp()
	assert.Equal(t, ChannelWhatsApp, w.Name())
	assert.Equal(t, "+911", w.Address(&domain.Account{PhoneNumber: "+911", Email: "x@y"}))

	ref, err := w.Send(context.Background(), Message{Recipient: "911", Body: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/911?text=ok", ref)
}

type mockMailSender struct {
	mock.Mock
}

func (m *mockMailSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	resp, _ := args.Get(0).(*rest.Response)
	return resp, args.Error(1)
}

func TestEmail_Send(t *testing.T) {
	sender := new(mockMailSender)
	e := &Email{client: sender, fromEmail: "noreply@drivekr.in", fromName: "DriveKR"}

	sender.On("SendWithContext", mock.Anything, mock.MatchedBy(func(m *mail.SGMailV3) bool {
		return m.Subject == "Transaction Approved" && m.From.Address == "noreply@drivekr.in"
	})).Return(&rest.Response{StatusCode: 202, Headers: map[string][]string{"X-Message-Id": {"msg-1"}}}, nil).Once()

	ref, err := e.Send(context.Background(), Message{Recipient: "rider@example.com", Title: "Transaction Approved", Body: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", ref)
	sender.AssertExpectations(t)
}

func TestEmail_SendFailures(t *testing.T) {
	sender := new(mockMailSender)
	e := &Email{client: sender, fromEmail: "noreply@drivekr.in", fromName: "DriveKR"}

	_, err := e.Send(context.Background(), Message{Body: "no recipient"})
	assert.Error(t, err)

	sender.On("SendWithContext", mock.Anything, mock.Anything).Return(&rest.Response{StatusCode: 401, Body: "bad key"}, nil).Once()
	_, err = e.Send(context.Background(), Message{Recipient: "a@b.c", Body: "x"})
	assert.ErrorContains(t, err, "status 401")

	sender.On("SendWithContext", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp")).Once()
	_, err = e.Send(context.Background(), Message{Recipient: "a@b.c", Body: "x"})
	assert.ErrorContains(t, err, "dial tcp")
}
