package grpc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"drivekr-wallet-backend/internal/domain"
)

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func intField(req *structpb.Struct, key string) int {
	return int(req.GetFields()[key].GetNumberValue())
}

// decimalField reads an amount sent either as a decimal string or as a JSON number.
func decimalField(req *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s is required", domain.ErrInvalidAmount, key)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(k.StringValue)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s is not a number", domain.ErrInvalidAmount, key)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(k.NumberValue), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidAmount, key)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func putTime(m map[string]any, key string, t *time.Time) {
	if t != nil {
		m[key] = formatTime(*t)
	}
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func MapDomainTransactionToProto(t *domain.Transaction) map[string]any {
	m := map[string]any{
		"id":         t.ID,
		"user_id":    t.UserID,
		"type":       string(t.Type),
		"amount":     t.Amount.StringFixed(2),
		"status":     string(t.Status),
		"created_at": formatTime(t.CreatedAt),
		"updated_at": formatTime(t.UpdatedAt),
	}
	putString(m, "payment_method", t.PaymentMethod)
	putString(m, "transaction_reference", t.TransactionReference)
	putString(m, "withdrawal_method", t.WithdrawalMethod)
	putString(m, "account_number", t.AccountNumber)
	putString(m, "ride_id", t.RideID)
	putString(m, "description", t.Description)
	putString(m, "rejection_reason", t.RejectionReason)
	putString(m, "verified_by", t.VerifiedBy)
	putTime(m, "verified_at", t.VerifiedAt)
	return m
}

func mapTransactions(txns []domain.Transaction) []any {
	out := make([]any, len(txns))
	for i := range txns {
		out[i] = MapDomainTransactionToProto(&txns[i])
	}
	return out
}

func MapDomainAccountToProto(a *domain.Account) map[string]any {
	m := map[string]any{
		"id":             a.ID,
		"display_name":   a.DisplayName,
		"phone_number":   a.PhoneNumber,
		"email":          a.Email,
		"account_type":   string(a.AccountType),
		"status":         string(a.Status),
		"wallet_balance": a.WalletBalance.StringFixed(2),
		"total_spent":    a.TotalSpent.StringFixed(2),
		"created_at":     formatTime(a.CreatedAt),
	}
	if a.AccountType == domain.AccountTypeDriver {
		m["total_earnings"] = a.TotalEarnings.StringFixed(2)
		m["verification_status"] = string(a.VerificationStatus)
		docs := map[string]any{}
		for name, d := range a.Documents {
			doc := map[string]any{"url": d.URL, "status": string(d.Status)}
			putTime(doc, "verified_at", d.VerifiedAt)
			putString(doc, "verified_by", d.VerifiedBy)
			docs[name] = doc
		}
		m["documents"] = docs
		putString(m, "rejection_reason", a.RejectionReason)
	}
	putString(m, "block_reason", a.BlockReason)
	putTime(m, "blocked_at", a.BlockedAt)
	return m
}

func mapAccounts(accounts []domain.Account) []any {
	out := make([]any, len(accounts))
	for i := range accounts {
		out[i] = MapDomainAccountToProto(&accounts[i])
	}
	return out
}

func MapDomainNotificationToProto(n *domain.Notification) map[string]any {
	m := map[string]any{
		"id":         n.ID,
		"kind":       string(n.Kind),
		"title":      n.Title,
		"message":    n.Message,
		"channel":    n.Channel,
		"status":     string(n.Status),
		"read":       n.Read,
		"created_at": formatTime(n.CreatedAt),
	}
	putString(m, "delivery_ref", n.DeliveryRef)
	putString(m, "sent_by", n.SentBy)
	return m
}

func MapDomainSettlementToProto(r *domain.SettlementResult) map[string]any {
	return map[string]any{
		"ride_id":       r.RideID,
		"rider_debit":   r.RiderDebit.StringFixed(2),
		"driver_credit": r.DriverCredit.StringFixed(2),
		"commission":    r.Commission.StringFixed(2),
		"transactions":  mapTransactions(r.Transactions),
	}
}

func MapDomainStatsToProto(s *domain.TransactionStats) map[string]any {
	return map[string]any{
		"total_deposits":      s.TotalDeposits.StringFixed(2),
		"total_withdrawals":   s.TotalWithdrawals.StringFixed(2),
		"total_ride_payments": s.TotalRidePayments.StringFixed(2),
		"total_commission":    s.TotalCommission.StringFixed(2),
		"recent_transactions": mapTransactions(s.RecentTransactions),
	}
}

func MapDomainPlatformStatsToProto(s *domain.PlatformStats) map[string]any {
	return map[string]any{
		"total_users":           s.TotalUsers,
		"total_drivers":         s.TotalDrivers,
		"pending_verifications": s.PendingVerifications,
		"pending_transactions":  s.PendingTransactions,
		"total_earnings":        s.TotalEarnings.StringFixed(2),
	}
}

// respond converts a response map into the wire message.
func respond(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return s, nil
}
