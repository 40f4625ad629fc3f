package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeRider  AccountType = "rider"
	AccountTypeDriver AccountType = "driver"
	AccountTypeAdmin  AccountType = "admin"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeRider, AccountTypeDriver, AccountTypeAdmin:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Document is a single driver document submission (license, registration, ...).
type Document struct {
	URL        string             `json:"url,omitempty"`
	Status     VerificationStatus `json:"status"`
	VerifiedAt *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy string             `json:"verified_by,omitempty"`
}

type Account struct {
	ID                 string              `json:"id"`
	DisplayName        string              `json:"display_name"`
	PhoneNumber        string              `json:"phone_number"`
	Email              string              `json:"email"`
	AccountType        AccountType         `json:"account_type"`
	Status             AccountStatus       `json:"status"`
	WalletBalance      decimal.Decimal     `json:"wallet_balance"`
	TotalSpent         decimal.Decimal     `json:"total_spent"`
	TotalEarnings      decimal.Decimal     `json:"total_earnings"`
	VerificationStatus VerificationStatus  `json:"verification_status,omitempty"` // drivers only
	Documents          map[string]Document `json:"documents,omitempty"`
	RejectionReason    string              `json:"rejection_reason,omitempty"`
	VerifiedAt         *time.Time          `json:"verified_at,omitempty"`
	VerifiedBy         string              `json:"verified_by,omitempty"`
	BlockedAt          *time.Time          `json:"blocked_at,omitempty"`
	BlockedBy          string              `json:"blocked_by,omitempty"`
	BlockReason        string              `json:"block_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (a *Account) IsActive() bool { return a.Status == AccountStatusActive }

func (a *Account) IsAdmin() bool { return a.AccountType == AccountTypeAdmin }

// BalanceDelta describes a guarded balance mutation. WalletDelta may be negative;
// the accumulators only ever grow.
type BalanceDelta struct {
	WalletDelta   decimal.Decimal
	SpentDelta    decimal.Decimal
	EarningsDelta decimal.Decimal
}

// VerificationDecision is the outcome an admin records on a driver's documents.
type VerificationDecision struct {
	Status    VerificationStatus
	Reason    string
	DecidedBy string
	DecidedAt time.Time
	Documents map[string]Document
}

// StatusChange flips an account between active and blocked.
type StatusChange struct {
	Status    AccountStatus
	Reason    string
	ChangedBy string
	ChangedAt time.Time
}
