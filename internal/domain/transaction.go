package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeRidePayment TransactionType = "ride_payment"
	TransactionTypeRideEarning TransactionType = "ride_earning"
	TransactionTypeCommission  TransactionType = "commission"
)

// RequiresReview reports whether a transaction of this type is created pending
// and later resolved by an admin.
func (t TransactionType) RequiresReview() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusApproved  TransactionStatus = "approved"
	TransactionStatusRejected  TransactionStatus = "rejected"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// CanTransition reports whether a transaction may move from s to next.
// Only pending transactions move, and only to approved or rejected.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	return s == TransactionStatusPending &&
		(next == TransactionStatusApproved || next == TransactionStatusRejected)
}

// PlatformUserID owns commission transactions.
const PlatformUserID = "platform"

type Transaction struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	Type                 TransactionType   `json:"type"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               TransactionStatus `json:"status"`
	PaymentMethod        string            `json:"payment_method,omitempty"`
	TransactionReference string            `json:"transaction_reference,omitempty"`
	WithdrawalMethod     string            `json:"withdrawal_method,omitempty"`
	AccountNumber        string            `json:"account_number,omitempty"`
	RideID               string            `json:"ride_id,omitempty"`
	Description          string            `json:"description,omitempty"`
	RejectionReason      string            `json:"rejection_reason,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	VerifiedAt           *time.Time        `json:"verified_at,omitempty"`
	VerifiedBy           string            `json:"verified_by,omitempty"`
}

// Resolution is the audit metadata written when a pending transaction is decided.
type Resolution struct {
	Status     TransactionStatus
	Reason     string
	VerifiedBy string
	VerifiedAt time.Time
}

type TransactionStats struct {
	TotalDeposits      decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals   decimal.Decimal `json:"total_withdrawals"`
	TotalRidePayments  decimal.Decimal `json:"total_ride_payments"`
	TotalCommission    decimal.Decimal `json:"total_commission"`
	RecentTransactions []Transaction   `json:"recent_transactions"`
}

// RideSettlement is consumed once to produce the three settlement transactions.
type RideSettlement struct {
	RideID      string
	RiderID     string
	DriverID    string
	GrossAmount decimal.Decimal
}

type SettlementResult struct {
	RideID       string          `json:"ride_id"`
	RiderDebit   decimal.Decimal `json:"rider_debit"`
	DriverCredit decimal.Decimal `json:"driver_credit"`
	Commission   decimal.Decimal `json:"commission"`
	Transactions []Transaction   `json:"transactions"`
}

type PlatformStats struct {
	TotalUsers           int             `json:"total_users"`
	TotalDrivers         int             `json:"total_drivers"`
	PendingVerifications int             `json:"pending_verifications"`
	PendingTransactions  int             `json:"pending_transactions"`
	TotalEarnings        decimal.Decimal `json:"total_earnings"`
}
