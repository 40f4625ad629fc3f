package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/repository"
)

func TestLedgerService_RequestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "100")

	t.Run("Pending until approved", func(t *testing.T) {
		txn, err := f.ledger.RequestDeposit(ctx, "rider-1", dec("500"), "upi", "UTR123")
		require.NoError(t, err)
		assert.NotEmpty(t, txn.ID)
		assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
		assert.Equal(t, domain.TransactionStatusPending, txn.Status)
		assert.Equal(t, "UTR123", txn.TransactionReference)
		assertAmount(t, "100", f.account(t, "rider-1").WalletBalance)

		e := f.events.last()
		assert.Equal(t, domain.EventDepositRequested, e.Kind)
		assert.Equal(t, txn.ID, e.TransactionID)
		assert.Equal(t, "upi", e.Method)
	})

	t.Run("Invalid amounts", func(t *testing.T) {
		for _, amount := range []string{"0", "-10", "10.001"} {
			_, err := f.ledger.RequestDeposit(ctx, "rider-1", dec(amount), "upi", "")
			assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
		}
	})

	t.Run("Missing method", func(t *testing.T) {
		_, err := f.ledger.RequestDeposit(ctx, "rider-1", dec("10"), " ", "")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("Unknown account", func(t *testing.T) {
		_, err := f.ledger.RequestDeposit(ctx, "ghost", dec("10"), "upi", "")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

func TestLedgerService_RequestWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "driver-1", domain.AccountTypeDriver, "800")

	t.Run("Below minimum", func(t *testing.T) {
		_, err := f.ledger.RequestWithdrawal(ctx, "driver-1", dec("400"), "bank", "ACC-1")
		assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	})

	t.Run("Insufficient balance", func(t *testing.T) {
		_, err := f.ledger.RequestWithdrawal(ctx, "driver-1", dec("10000"), "bank", "ACC-1")
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assertAmount(t, "800", f.account(t, "driver-1").WalletBalance)

		txns, err := f.ledger.GetTransactionHistory(ctx, "driver-1", 0)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("Missing account number", func(t *testing.T) {
		_, err := f.ledger.RequestWithdrawal(ctx, "driver-1", dec("500"), "bank", "")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("Debits immediately", func(t *testing.T) {
		txn, err := f.ledger.RequestWithdrawal(ctx, "driver-1", dec("500"), "bank", "ACC-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, txn.Status)
		assert.Equal(t, "ACC-1", txn.AccountNumber)
		assertAmount(t, "300", f.account(t, "driver-1").WalletBalance)
		assert.Equal(t, domain.EventWithdrawalRequested, f.events.last().Kind)
	})
}

func TestLedgerService_BlockedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "1000")
	require.NoError(t, f.verification.BlockUser(ctx, "rider-1", "fraud", "admin-1"))

	_, err := f.ledger.RequestDeposit(ctx, "rider-1", dec("100"), "upi", "")
	assert.ErrorIs(t, err, domain.ErrAccountBlocked)
	_, err = f.ledger.RequestWithdrawal(ctx, "rider-1", dec("500"), "bank", "ACC-1")
	assert.ErrorIs(t, err, domain.ErrAccountBlocked)
	assertAmount(t, "1000", f.account(t, "rider-1").WalletBalance)
}

func TestLedgerService_SettleRide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "2000")
	f.seed(t, "driver-1", domain.AccountTypeDriver, "0")
	f.seed(t, "rider-2", domain.AccountTypeRider, "50")

	t.Run("Splits fare and commission", func(t *testing.T) {
		res, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: "ride-1", RiderID: "rider-1", DriverID: "driver-1", GrossAmount: dec("1000"),
		})
		require.NoError(t, err)
		assertAmount(t, "1000", res.RiderDebit)
		assertAmount(t, "850", res.DriverCredit)
		assertAmount(t, "150", res.Commission)
		require.Len(t, res.Transactions, 3)

		rider := f.account(t, "rider-1")
		assertAmount(t, "1000", rider.WalletBalance)
		assertAmount(t, "1000", rider.TotalSpent)
		driver := f.account(t, "driver-1")
		assertAmount(t, "850", driver.WalletBalance)
		assertAmount(t, "850", driver.TotalEarnings)

		txns, err := f.store.Transactions().List(ctx, repository.TransactionFilter{RideID: "ride-1"})
		require.NoError(t, err)
		byType := map[domain.TransactionType]domain.Transaction{}
		for _, txn := range txns {
			byType[txn.Type] = txn
		}
		assert.Equal(t, "Ride payment for ride-1", byType[domain.TransactionTypeRidePayment].Description)
		assert.Equal(t, "Earnings from ride ride-1", byType[domain.TransactionTypeRideEarning].Description)
		assert.Equal(t, domain.PlatformUserID, byType[domain.TransactionTypeCommission].UserID)
		assertAmount(t, "150", byType[domain.TransactionTypeCommission].Amount)

		assert.Contains(t, f.events.kinds(), domain.EventRidePaid)
		assert.Contains(t, f.events.kinds(), domain.EventRideEarned)
	})

	t.Run("Same ride twice", func(t *testing.T) {
		_, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: "ride-1", RiderID: "rider-1", DriverID: "driver-1", GrossAmount: dec("1000"),
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
		assertAmount(t, "1000", f.account(t, "rider-1").WalletBalance)
		assertAmount(t, "850", f.account(t, "driver-1").WalletBalance)
	})

	t.Run("Rider short of funds", func(t *testing.T) {
		_, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: "ride-2", RiderID: "rider-2", DriverID: "driver-1", GrossAmount: dec("100"),
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assertAmount(t, "50", f.account(t, "rider-2").WalletBalance)
		assertAmount(t, "850", f.account(t, "driver-1").WalletBalance)

		txns, err := f.store.Transactions().List(ctx, repository.TransactionFilter{RideID: "ride-2"})
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("Payee must be a driver", func(t *testing.T) {
		_, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: "ride-3", RiderID: "rider-1", DriverID: "rider-2", GrossAmount: dec("10"),
		})
		assert.ErrorIs(t, err, domain.ErrNotDriver)
	})

	t.Run("Rider and driver differ", func(t *testing.T) {
		_, err := f.ledger.SettleRide(ctx, domain.RideSettlement{
			RideID: "ride-4", RiderID: "driver-1", DriverID: "driver-1", GrossAmount: dec("10"),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestLedgerService_History(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "0")

	for _, amount := range []string{"100", "200", "300", "400", "500"} {
		_, err := f.ledger.RequestDeposit(ctx, "rider-1", dec(amount), "upi", "")
		require.NoError(t, err)
	}

	txns, err := f.ledger.GetTransactionHistory(ctx, "rider-1", 3)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assertAmount(t, "500", txns[0].Amount)
	assertAmount(t, "300", txns[2].Amount)
	assert.True(t, txns[0].CreatedAt.After(txns[1].CreatedAt))

	all, err := f.ledger.GetTransactionHistory(ctx, "rider-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestLedgerService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "rider-1", domain.AccountTypeRider, "1000")
	f.seed(t, "driver-1", domain.AccountTypeDriver, "0")

	approved, err := f.ledger.RequestDeposit(ctx, "rider-1", dec("300"), "upi", "")
	require.NoError(t, err)
	_, err = f.verification.ApproveTransaction(ctx, approved.ID, "admin-1")
	require.NoError(t, err)
	_, err = f.ledger.RequestDeposit(ctx, "rider-1", dec("999"), "upi", "")
	require.NoError(t, err)
	_, err = f.ledger.SettleRide(ctx, domain.RideSettlement{
		RideID: "ride-1", RiderID: "rider-1", DriverID: "driver-1", GrossAmount: dec("200"),
	})
	require.NoError(t, err)

	stats, err := f.ledger.GetTransactionStats(ctx, "rider-1")
	require.NoError(t, err)
	assertAmount(t, "300", stats.TotalDeposits)
	assertAmount(t, "0", stats.TotalWithdrawals)
	assertAmount(t, "200", stats.TotalRidePayments)
	assert.Len(t, stats.RecentTransactions, 3)

	balance, err := f.ledger.GetBalance(ctx, "rider-1")
	require.NoError(t, err)
	assertAmount(t, "1100", balance)
}
