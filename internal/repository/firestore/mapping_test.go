package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"drivekr-wallet-backend/internal/domain"
)

func TestAccountFromMap_WebClientDocument(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := map[string]any{
		"uid":                "d1",
		"fullName":           "Asha Driver",
		"phone":              "+919800000000",
		"accountType":        "driver",
		"walletBalance":      int64(1200),
		"totalEarnings":      850.5,
		"verificationStatus": "pending",
		"createdAt":          created,
		"vehicleNumber":      "KA-01-1234",
		"documents": map[string]any{
			"license": map[string]any{"status": "approved", "url": "https://cdn/license.jpg", "verifiedAt": "2025-03-02T09:00:00Z"},
			"bogus":   "not a map",
		},
	}

	a, err := accountFromMap("d1", doc)
	require.NoError(t, err)

	assert.Equal(t, "Asha Driver", a.DisplayName)
	assert.Equal(t, domain.AccountTypeDriver, a.AccountType)
	assert.Equal(t, domain.AccountStatusActive, a.Status)
	assert.True(t, decimal.NewFromInt(1200).Equal(a.WalletBalance))
	assert.True(t, decimal.RequireFromString("850.5").Equal(a.TotalEarnings))
	assert.True(t, a.TotalSpent.IsZero())
	assert.Equal(t, created, a.CreatedAt)
	require.Len(t, a.Documents, 1)
	lic := a.Documents["license"]
	assert.Equal(t, domain.VerificationApproved, lic.Status)
	require.NotNil(t, lic.VerifiedAt)
	assert.Equal(t, 2, lic.VerifiedAt.Day())
}

func TestAccountFromMap_BadAmount(t *testing.T) {
	_, err := accountFromMap("u1", map[string]any{"walletBalance": true})
	assert.Error(t, err)

	_, err = accountFromMap("u1", map[string]any{"walletBalance": "12.x"})
	assert.Error(t, err)
}

func TestAccountToMap_RiderOmitsDriverFields(t *testing.T) {
	m := accountToMap(&domain.Account{
		ID:            "r1",
		AccountType:   domain.AccountTypeRider,
		Status:        domain.AccountStatusActive,
		WalletBalance: decimal.RequireFromString("99.999"),
	})

	assert.Equal(t, 100.0, m["walletBalance"])
	assert.NotContains(t, m, "documents")
	assert.NotContains(t, m, "verificationStatus")
	assert.NotContains(t, m, "totalEarnings")
}

func TestAccountToMap_DriverRoundTrip(t *testing.T) {
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	in := &domain.Account{
		ID:                 "d1",
		DisplayName:        "Ravi",
		AccountType:        domain.AccountTypeDriver,
		Status:             domain.AccountStatusActive,
		WalletBalance:      decimal.RequireFromString("10.25"),
		TotalEarnings:      decimal.NewFromInt(40),
		VerificationStatus: domain.VerificationApproved,
		Documents: map[string]domain.Document{
			"rc": {Status: domain.VerificationApproved, VerifiedAt: &at, VerifiedBy: "admin-1"},
		},
		CreatedAt: at,
		UpdatedAt: at,
	}

	m := accountToMap(in)
	assert.Equal(t, true, m["isVerified"])

	out, err := accountFromMap("d1", m)
	require.NoError(t, err)
	assert.True(t, in.WalletBalance.Equal(out.WalletBalance))
	assert.True(t, in.TotalEarnings.Equal(out.TotalEarnings))
	assert.Equal(t, in.VerificationStatus, out.VerificationStatus)
	assert.Equal(t, "admin-1", out.Documents["rc"].VerifiedBy)
}

func TestTransactionMapping(t *testing.T) {
	created := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	txn := &domain.Transaction{
		UserID:               "u1",
		Type:                 domain.TransactionTypeDeposit,
		Amount:               decimal.NewFromInt(500),
		Status:               domain.TransactionStatusPending,
		PaymentMethod:        "upi",
		TransactionReference: "UTR123",
		CreatedAt:            created,
		UpdatedAt:            created,
	}

	m := transactionToMap(txn)
	assert.Equal(t, "UTR123", m["transactionId"])
	assert.Equal(t, 500.0, m["amount"])
	assert.NotContains(t, m, "rideId")
	assert.NotContains(t, m, "withdrawalMethod")

	out, err := transactionFromMap("t1", m)
	require.NoError(t, err)
	assert.Equal(t, "t1", out.ID)
	assert.Equal(t, "UTR123", out.TransactionReference)
	assert.True(t, txn.Amount.Equal(out.Amount))
	assert.Nil(t, out.VerifiedAt)
}

func TestTransactionFromMap_MissingUpdatedAt(t *testing.T) {
	created := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	out, err := transactionFromMap("t1", map[string]any{"amount": 10.0, "createdAt": created})
	require.NoError(t, err)
	assert.Equal(t, created, out.UpdatedAt)
}

func TestNotificationFromMap_WebClientDefaults(t *testing.T) {
	n := notificationFromMap("n1", map[string]any{
		"userId":  "u1",
		"type":    "broadcast",
		"title":   "Admin Broadcast",
		"message": "hello",
		"read":    false,
		"sentBy":  "admin-1",
	})

	assert.Equal(t, domain.EventBroadcast, n.Kind)
	assert.Equal(t, domain.NotificationStatusDelivered, n.Status)
	assert.Equal(t, "admin-1", n.SentBy)
	assert.Zero(t, n.Attempts)
}

func TestNotificationToMap(t *testing.T) {
	m := notificationToMap(&domain.Notification{
		UserID:   "u1",
		Kind:     domain.EventApproval,
		Message:  "ok",
		Status:   domain.NotificationStatusFailed,
		Attempts: 2,
	})
	assert.Equal(t, int64(2), m["attempts"])
	assert.Equal(t, "failed", m["deliveryStatus"])
	assert.NotContains(t, m, "sentBy")

	back := notificationFromMap("n1", m)
	assert.Equal(t, 2, back.Attempts)
	assert.Equal(t, domain.NotificationStatusFailed, back.Status)
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), domain.ErrStoreUnavailable},
		{"aborted", status.Error(codes.Aborted, "contention"), domain.ErrStoreUnavailable},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), domain.ErrStoreUnavailable},
		{"exists", status.Error(codes.AlreadyExists, "dup"), domain.ErrAlreadyProcessed},
		{"domain passthrough", domain.ErrInsufficientBalance, domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.in), tt.want)
		})
	}

	assert.NoError(t, translateError(nil))
	other := errors.New("permission denied")
	assert.Equal(t, other, translateError(other))
}
