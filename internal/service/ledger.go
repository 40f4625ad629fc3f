package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/events"
	"drivekr-wallet-backend/internal/lock"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
)

const recentTransactions = 10

type LedgerConfig struct {
	CommissionRate    decimal.Decimal
	MinimumWithdrawal decimal.Decimal
	HistoryLimit      int
	StoreTimeout      time.Duration
}

type ledgerService struct {
	store   repository.Store
	locker  lock.Locker
	events  events.Publisher
	metrics MetricsCollector
	cfg     LedgerConfig
}

func NewLedgerService(
	store repository.Store,
	locker lock.Locker,
	publisher events.Publisher,
	metrics MetricsCollector,
	cfg LedgerConfig,
) LedgerService {
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &ledgerService{
		store:   store,
		locker:  locker,
		events:  publisher,
		metrics: metrics,
		cfg:     cfg,
	}
}

// bounded applies the store timeout to one operation.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// validAmount accepts positive amounts with at most two decimal places.
func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s has more than two decimal places", domain.ErrInvalidAmount, amount)
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidRequest, field)
	}
	return nil
}

func activeAccount(ctx context.Context, store repository.Store, userID string) (*domain.Account, error) {
	a, err := store.Accounts().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountBlocked, userID)
	}
	return a, nil
}

func (s *ledgerService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	a, err := s.store.Accounts().GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return a.WalletBalance, nil
}

// RequestDeposit records a pending deposit. The balance only moves when an admin
// approves it.
func (s *ledgerService) RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal, method, reference string) (txn *domain.Transaction, err error) {
	defer observe(s.metrics, "RequestDeposit", time.Now(), &err)
	logger.EnterMethod("ledgerService.RequestDeposit", "userID", userID, "amount", amount, "method", method)

	if err := validAmount(amount); err != nil {
		logger.ExitMethodWithError("ledgerService.RequestDeposit", err, "userID", userID)
		return nil, err
	}
	if err := required("payment method", method); err != nil {
		return nil, err
	}

	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if _, err := activeAccount(ctx, s.store, userID); err != nil {
		logger.ExitMethodWithError("ledgerService.RequestDeposit", err, "userID", userID)
		return nil, err
	}

	txn = &domain.Transaction{
		UserID:               userID,
		Type:                 domain.TransactionTypeDeposit,
		Amount:               amount,
		Status:               domain.TransactionStatusPending,
		PaymentMethod:        method,
		TransactionReference: reference,
		Description:          fmt.Sprintf("Wallet deposit via %s", method),
	}
	if err := s.store.Transactions().Create(ctx, txn); err != nil {
		logger.ExitMethodWithError("ledgerService.RequestDeposit", err, "userID", userID)
		return nil, fmt.Errorf("failed to create deposit request: %w", err)
	}

	s.events.Publish(ctx, domain.Event{
		Kind:          domain.EventDepositRequested,
		Subject:       domain.SubjectTransaction,
		UserID:        userID,
		TransactionID: txn.ID,
		Amount:        amount,
		Method:        method,
	})
	logger.ExitMethod("ledgerService.RequestDeposit", "transactionID", txn.ID)
	return txn, nil
}

// RequestWithdrawal debits the wallet immediately and records a pending withdrawal. A
// rejection later credits the amount back.
func (s *ledgerService) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, method, accountRef string) (txn *domain.Transaction, err error) {
	defer observe(s.metrics, "RequestWithdrawal", time.Now(), &err)
	logger.EnterMethod("ledgerService.RequestWithdrawal", "userID", userID, "amount", amount, "method", method)

	if err := validAmount(amount); err != nil {
		logger.ExitMethodWithError("ledgerService.RequestWithdrawal", err, "userID", userID)
		return nil, err
	}
	if amount.LessThan(s.cfg.MinimumWithdrawal) {
		err := fmt.Errorf("%w: minimum withdrawal amount is %s", domain.ErrBelowMinimum, s.cfg.MinimumWithdrawal)
		logger.ExitMethodWithError("ledgerService.RequestWithdrawal", err, "userID", userID)
		return nil, err
	}
	if err := required("withdrawal method", method); err != nil {
		return nil, err
	}
	if err := required("account number", accountRef); err != nil {
		return nil, err
	}

	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := activeAccount(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.Accounts().AdjustBalance(ctx, userID, domain.BalanceDelta{WalletDelta: amount.Neg()}); err != nil {
			return err
		}
		txn = &domain.Transaction{
			UserID:           userID,
			Type:             domain.TransactionTypeWithdrawal,
			Amount:           amount,
			Status:           domain.TransactionStatusPending,
			WithdrawalMethod: method,
			AccountNumber:    accountRef,
			Description:      fmt.Sprintf("Withdrawal to %s", method),
		}
		return tx.Transactions().Create(ctx, txn)
	})
	if err != nil {
		logger.ExitMethodWithError("ledgerService.RequestWithdrawal", err, "userID", userID)
		return nil, fmt.Errorf("failed to request withdrawal: %w", err)
	}

	s.events.Publish(ctx, domain.Event{
		Kind:          domain.EventWithdrawalRequested,
		Subject:       domain.SubjectTransaction,
		UserID:        userID,
		TransactionID: txn.ID,
		Amount:        amount,
		Method:        method,
	})
	logger.ExitMethod("ledgerService.RequestWithdrawal", "transactionID", txn.ID)
	return txn, nil
}

// SettleRide moves a completed ride's fare from the rider to the driver, keeping the
// platform commission. Balances and the three records commit together.
func (s *ledgerService) SettleRide(ctx context.Context, rs domain.RideSettlement) (res *domain.SettlementResult, err error) {
	defer observe(s.metrics, "SettleRide", time.Now(), &err)
	logger.EnterMethod("ledgerService.SettleRide", "rideID", rs.RideID, "riderID", rs.RiderID, "driverID", rs.DriverID, "gross", rs.GrossAmount)

	if err := validAmount(rs.GrossAmount); err != nil {
		return nil, err
	}
	for _, f := range [][2]string{{"ride id", rs.RideID}, {"rider id", rs.RiderID}, {"driver id", rs.DriverID}} {
		if err := required(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if rs.RiderID == rs.DriverID {
		return nil, fmt.Errorf("%w: rider and driver must differ", domain.ErrInvalidRequest)
	}

	commission := rs.GrossAmount.Mul(s.cfg.CommissionRate).Round(2)
	credit := rs.GrossAmount.Sub(commission)

	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, rs.RiderID, rs.DriverID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Accounts().GetByID(ctx, rs.RiderID); err != nil {
			return err
		}
		driver, err := tx.Accounts().GetByID(ctx, rs.DriverID)
		if err != nil {
			return err
		}
		if driver.AccountType != domain.AccountTypeDriver {
			return fmt.Errorf("%w: %s", domain.ErrNotDriver, rs.DriverID)
		}

		// The payment record goes first so that a repeated settlement fails before any
		// balance is touched.
		payment := &domain.Transaction{
			UserID:      rs.RiderID,
			Type:        domain.TransactionTypeRidePayment,
			Amount:      rs.GrossAmount,
			Status:      domain.TransactionStatusCompleted,
			RideID:      rs.RideID,
			Description: fmt.Sprintf("Ride payment for %s", rs.RideID),
		}
		if err := tx.Transactions().Create(ctx, payment); err != nil {
			return err
		}

		if _, err := tx.Accounts().AdjustBalance(ctx, rs.RiderID, domain.BalanceDelta{
			WalletDelta: rs.GrossAmount.Neg(),
			SpentDelta:  rs.GrossAmount,
		}); err != nil {
			return err
		}
		if _, err := tx.Accounts().AdjustBalance(ctx, rs.DriverID, domain.BalanceDelta{
			WalletDelta:   credit,
			EarningsDelta: credit,
		}); err != nil {
			return err
		}

		earning := &domain.Transaction{
			UserID:      rs.DriverID,
			Type:        domain.TransactionTypeRideEarning,
			Amount:      credit,
			Status:      domain.TransactionStatusCompleted,
			RideID:      rs.RideID,
			Description: fmt.Sprintf("Earnings from ride %s", rs.RideID),
		}
		if err := tx.Transactions().Create(ctx, earning); err != nil {
			return err
		}
		records := []domain.Transaction{*payment, *earning}

		if commission.IsPositive() {
			fee := &domain.Transaction{
				UserID:      domain.PlatformUserID,
				Type:        domain.TransactionTypeCommission,
				Amount:      commission,
				Status:      domain.TransactionStatusCompleted,
				RideID:      rs.RideID,
				Description: fmt.Sprintf("Commission from ride %s", rs.RideID),
			}
			if err := tx.Transactions().Create(ctx, fee); err != nil {
				return err
			}
			records = append(records, *fee)
		}

		res = &domain.SettlementResult{
			RideID:       rs.RideID,
			RiderDebit:   rs.GrossAmount,
			DriverCredit: credit,
			Commission:   commission,
			Transactions: records,
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("ledgerService.SettleRide", err, "rideID", rs.RideID)
		return nil, fmt.Errorf("failed to settle ride %s: %w", rs.RideID, err)
	}

	s.metrics.RecordTransactionVolume(domain.TransactionTypeRidePayment, rs.GrossAmount)
	s.metrics.RecordTransactionVolume(domain.TransactionTypeCommission, commission)
	s.events.Publish(ctx, domain.Event{
		Kind:          domain.EventRidePaid,
		Subject:       domain.SubjectTransaction,
		UserID:        rs.RiderID,
		TransactionID: res.Transactions[0].ID,
		RideID:        rs.RideID,
		Amount:        rs.GrossAmount,
	})
	s.events.Publish(ctx, domain.Event{
		Kind:          domain.EventRideEarned,
		Subject:       domain.SubjectTransaction,
		UserID:        rs.DriverID,
		TransactionID: res.Transactions[1].ID,
		RideID:        rs.RideID,
		Amount:        credit,
	})
	logger.ExitMethod("ledgerService.SettleRide", "rideID", rs.RideID, "commission", commission)
	return res, nil
}

func (s *ledgerService) GetTransactionHistory(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	txns, err := s.store.Transactions().List(ctx, repository.TransactionFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// GetTransactionStats sums approved deposits and withdrawals and every ride payment and
// commission record of the user.
func (s *ledgerService) GetTransactionStats(ctx context.Context, userID string) (*domain.TransactionStats, error) {
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	txns, err := s.store.Transactions().List(ctx, repository.TransactionFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	stats := &domain.TransactionStats{RecentTransactions: []domain.Transaction{}}
	for _, t := range txns {
		switch {
		case t.Type == domain.TransactionTypeDeposit && t.Status == domain.TransactionStatusApproved:
			stats.TotalDeposits = stats.TotalDeposits.Add(t.Amount)
		case t.Type == domain.TransactionTypeWithdrawal && t.Status == domain.TransactionStatusApproved:
			stats.TotalWithdrawals = stats.TotalWithdrawals.Add(t.Amount)
		case t.Type == domain.TransactionTypeRidePayment:
			stats.TotalRidePayments = stats.TotalRidePayments.Add(t.Amount)
		case t.Type == domain.TransactionTypeCommission:
			stats.TotalCommission = stats.TotalCommission.Add(t.Amount)
		}
	}
	stats.RecentTransactions = append(stats.RecentTransactions, txns[:min(recentTransactions, len(txns))]...)
	return stats, nil
}
