package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/repository/memory"
	"drivekr-wallet-backend/internal/service"
)

func TestAccountService_RegisterAccount(t *testing.T) {
	store := memory.NewStore()
	svc := service.NewAccountService(store, time.Second)
	ctx := context.Background()

	t.Run("Driver starts pending with zero balances", func(t *testing.T) {
		a, err := svc.RegisterAccount(ctx, &domain.Account{
			ID:            "driver-1",
			DisplayName:   " Ravi ",
			AccountType:   domain.AccountTypeDriver,
			WalletBalance: dec("5000"),
			Documents: map[string]domain.Document{
				"license": {URL: "https://files/l.jpg", Status: domain.VerificationApproved},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Ravi", a.DisplayName)
		assert.Equal(t, domain.AccountStatusActive, a.Status)
		assert.Equal(t, domain.VerificationPending, a.VerificationStatus)
		assert.Equal(t, domain.VerificationPending, a.Documents["license"].Status)
		assertAmount(t, "0", a.WalletBalance)

		stored, err := svc.GetAccount(ctx, "driver-1")
		require.NoError(t, err)
		assertAmount(t, "0", stored.WalletBalance)
	})

	t.Run("Rider has no verification state", func(t *testing.T) {
		a, err := svc.RegisterAccount(ctx, &domain.Account{
			ID:                 "rider-1",
			AccountType:        domain.AccountTypeRider,
			VerificationStatus: domain.VerificationApproved,
		})
		require.NoError(t, err)
		assert.Empty(t, a.VerificationStatus)
		assert.Nil(t, a.Documents)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := svc.RegisterAccount(ctx, &domain.Account{ID: "rider-1", AccountType: domain.AccountTypeRider})
		assert.ErrorIs(t, err, domain.ErrAccountExists)
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, err := svc.RegisterAccount(ctx, &domain.Account{ID: "x", AccountType: "pilot"})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		_, err = svc.RegisterAccount(ctx, &domain.Account{AccountType: domain.AccountTypeRider})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestAccountService_Notifications(t *testing.T) {
	store := memory.NewStore()
	svc := service.NewAccountService(store, time.Second)
	ctx := context.Background()

	n := &domain.Notification{UserID: "rider-1", Kind: domain.EventBroadcast, Title: "Admin Broadcast", Message: "hi"}
	require.NoError(t, store.Notifications().Create(ctx, n))

	ns, err := svc.ListNotifications(ctx, "rider-1", 0)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.False(t, ns[0].Read)

	err = svc.MarkNotificationRead(ctx, "rider-2", n.ID)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	require.NoError(t, svc.MarkNotificationRead(ctx, "rider-1", n.ID))
	ns, err = svc.ListNotifications(ctx, "rider-1", 0)
	require.NoError(t, err)
	assert.True(t, ns[0].Read)
}
