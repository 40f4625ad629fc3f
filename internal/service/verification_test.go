package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
)

func TestVerificationService_ApproveDeposit_CreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "0")

	txn, err := f.ledger.RequestDeposit(ctx, "rider-1", dec("500"), "upi", "UTR1")
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		processed int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.verification.ApproveTransaction(ctx, txn.ID, "admin-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrAlreadyProcessed):
				processed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, processed)
	assertAmount(t, "500", f.account(t, "rider-1").WalletBalance)

	approved, err := f.store.Transactions().GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, approved.Status)
	assert.Equal(t, "admin-1", approved.VerifiedBy)
	assert.NotNil(t, approved.VerifiedAt)
}

func TestVerificationService_Withdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "driver-1", domain.AccountTypeDriver, "800")

	t.Run("Reject restores the held amount", func(t *testing.T) {
		txn, err := f.ledger.RequestWithdrawal(ctx, "driver-1", dec("500"), "bank", "ACC-1")
		require.NoError(t, err)
		assertAmount(t, "300", f.account(t, "driver-1").WalletBalance)

		_, err = f.verification.RejectTransaction(ctx, txn.ID, "", "admin-1")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		rejected, err := f.verification.RejectTransaction(ctx, txn.ID, "bank details mismatch", "admin-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusRejected, rejected.Status)
		assert.Equal(t, "bank details mismatch", rejected.RejectionReason)
		assertAmount(t, "800", f.account(t, "driver-1").WalletBalance)

		e := f.events.last()
		assert.Equal(t, domain.EventRejection, e.Kind)
		assert.Equal(t, domain.SubjectTransaction, e.Subject)
		assert.Equal(t, "bank details mismatch", e.Reason)

		_, err = f.verification.RejectTransaction(ctx, txn.ID, "again", "admin-1")
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
		assertAmount(t, "800", f.account(t, "driver-1").WalletBalance)
	})

	t.Run("Approve leaves the balance debited", func(t *testing.T) {
		txn, err := f.ledger.RequestWithdrawal(ctx, "driver-1", dec("600"), "bank", "ACC-1")
		require.NoError(t, err)

		_, err = f.verification.ApproveTransaction(ctx, txn.ID, "admin-1")
		require.NoError(t, err)
		assertAmount(t, "200", f.account(t, "driver-1").WalletBalance)
	})

	t.Run("Settlement records are not reviewed", func(t *testing.T) {
		f.seed(t, "rider-9", domain.AccountTypeRider, "100")
		res, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: "ride-9", RiderID: "rider-9", DriverID: "driver-1", GrossAmount: dec("100"),
		})
		require.NoError(t, err)

		_, err = f.verification.ApproveTransaction(ctx, res.Transactions[0].ID, "admin-1")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("Unknown transaction", func(t *testing.T) {
		_, err := f.verification.ApproveTransaction(ctx, "missing", "admin-1")
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})
}

func TestVerificationService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "0")
	f.seed(t, "admin-2", domain.AccountTypeAdmin, "0")
	require.NoError(t, f.verification.BlockUser(ctx, "admin-2", "left the team", "admin-1"))

	txn, err := f.ledger.RequestDeposit(ctx, "rider-1", dec("500"), "upi", "")
	require.NoError(t, err)

	for _, caller := range []string{"", "rider-1", "ghost", "admin-2"} {
		_, err := f.verification.ApproveTransaction(ctx, txn.ID, caller)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, caller)
		_, err = f.verification.GetPlatformStats(ctx, caller)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, caller)
	}
	assertAmount(t, "0", f.account(t, "rider-1").WalletBalance)
}

func TestVerificationService_DriverDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "driver-1", domain.AccountTypeDriver, "0")
	f.seed(t, "driver-2", domain.AccountTypeDriver, "0")
	f.seed(t, "rider-1", domain.AccountTypeRider, "0")

	pending, err := f.verification.ListPendingDriverVerifications(ctx, "admin-1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	t.Run("Approve marks every document", func(t *testing.T) {
		require.NoError(t, f.verification.ApproveDriverDocuments(ctx, "driver-1", "admin-1"))

		a := f.account(t, "driver-1")
		assert.Equal(t, domain.VerificationApproved, a.VerificationStatus)
		require.Len(t, a.Documents, 2)
		for name, d := range a.Documents {
			assert.Equal(t, domain.VerificationApproved, d.Status, name)
			assert.Equal(t, "admin-1", d.VerifiedBy, name)
			assert.NotNil(t, d.VerifiedAt, name)
		}

		e := f.events.last()
		assert.Equal(t, domain.EventApproval, e.Kind)
		assert.Equal(t, domain.SubjectDocuments, e.Subject)

		err := f.verification.ApproveDriverDocuments(ctx, "driver-1", "admin-1")
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	})

	t.Run("Reject keeps documents untouched", func(t *testing.T) {
		err := f.verification.RejectDriverDocuments(ctx, "driver-2", "", "admin-1")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		require.NoError(t, f.verification.RejectDriverDocuments(ctx, "driver-2", "blurry licence", "admin-1"))
		a := f.account(t, "driver-2")
		assert.Equal(t, domain.VerificationRejected, a.VerificationStatus)
		assert.Equal(t, "blurry licence", a.RejectionReason)
		assert.Equal(t, domain.VerificationPending, a.Documents["license"].Status)
	})

	t.Run("Riders have no documents", func(t *testing.T) {
		err := f.verification.ApproveDriverDocuments(ctx, "rider-1", "admin-1")
		assert.ErrorIs(t, err, domain.ErrNotDriver)
	})

	pending, err = f.verification.ListPendingDriverVerifications(ctx, "admin-1", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestVerificationService_BlockUnblock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "0")

	assert.ErrorIs(t, f.verification.BlockUser(ctx, "rider-1", "", "admin-1"), domain.ErrInvalidRequest)
	assert.ErrorIs(t, f.verification.BlockUser(ctx, "admin-1", "oops", "admin-1"), domain.ErrInvalidRequest)

	require.NoError(t, f.verification.BlockUser(ctx, "rider-1", "chargeback abuse", "admin-1"))
	a := f.account(t, "rider-1")
	assert.Equal(t, domain.AccountStatusBlocked, a.Status)
	assert.Equal(t, "chargeback abuse", a.BlockReason)
	assert.Equal(t, "admin-1", a.BlockedBy)

	assert.ErrorIs(t, f.verification.BlockUser(ctx, "rider-1", "again", "admin-1"), domain.ErrAlreadyProcessed)

	require.NoError(t, f.verification.UnblockUser(ctx, "rider-1", "admin-1"))
	a = f.account(t, "rider-1")
	assert.Equal(t, domain.AccountStatusActive, a.Status)
	assert.Empty(t, a.BlockReason)

	e := f.events.last()
	assert.Equal(t, domain.EventAccountStatus, e.Kind)
	assert.Equal(t, string(domain.AccountStatusActive), e.Status)
}

func TestVerificationService_PlatformStatsAndBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "1000")
	f.seed(t, "rider-2", domain.AccountTypeRider, "0")
	f.seed(t, "driver-1", domain.AccountTypeDriver, "0")
	f.seed(t, "driver-2", domain.AccountTypeDriver, "0")
	require.NoError(t, f.verification.ApproveDriverDocuments(ctx, "driver-2", "admin-1"))

	_, err := f.ledger.RequestDeposit(ctx, "rider-2", dec("250"), "upi", "")
	require.NoError(t, err)
	for i, ride := range []string{"ride-1", "ride-2"} {
		_, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: ride, RiderID: "rider-1", DriverID: []string{"driver-1", "driver-2"}[i], GrossAmount: dec("100"),
		})
		require.NoError(t, err)
	}

	stats, err := f.verification.GetPlatformStats(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalUsers)
	assert.Equal(t, 2, stats.TotalDrivers)
	assert.Equal(t, 1, stats.PendingVerifications)
	assert.Equal(t, 1, stats.PendingTransactions)
	assertAmount(t, "30", stats.TotalEarnings)

	pending, err := f.verification.ListPendingTransactions(ctx, "admin-1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rider-2", pending[0].UserID)

	require.NoError(t, f.verification.BlockUser(ctx, "rider-2", "spam", "admin-1"))

	_, err = f.verification.SendBroadcast(ctx, "  ", "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	n, err := f.verification.SendBroadcast(ctx, "Fares drop 10% this weekend", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	e := f.events.last()
	assert.Equal(t, domain.EventBroadcast, e.Kind)
	assert.Equal(t, "admin-1", e.ActorID)
	assert.Equal(t, "Fares drop 10% this weekend", e.Message)
}
