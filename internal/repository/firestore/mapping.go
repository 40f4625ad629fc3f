package firestore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
)

// Field names follow the documents written by the web client, so both can share a project.
// Decoding is explicit: fields this service does not know are ignored, and missing numeric
// fields read as zero.

const (
	colUsers         = "users"
	colTransactions  = "transactions"
	colNotifications = "notifications"
)

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func integer(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// amount reads a money field. The web client stores plain JS numbers, which arrive as
// int64 or float64.
func amount(m map[string]any, key string) (decimal.Decimal, error) {
	switch v := m[key].(type) {
	case nil:
		return decimal.Zero, nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v).Round(2), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: %w", key, err)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("field %s: unexpected type %T", key, m[key])
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// timestamp accepts Firestore timestamps and the ISO strings the web client writes for
// document approvals.
func timestamp(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func timestampPtr(m map[string]any, key string) *time.Time {
	t := timestamp(m, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func accountFromMap(id string, m map[string]any) (*domain.Account, error) {
	a := &domain.Account{
		ID:                 id,
		DisplayName:        str(m, "fullName"),
		PhoneNumber:        str(m, "phone"),
		Email:              str(m, "email"),
		AccountType:        domain.AccountType(str(m, "accountType")),
		Status:             domain.AccountStatus(str(m, "status")),
		VerificationStatus: domain.VerificationStatus(str(m, "verificationStatus")),
		RejectionReason:    str(m, "rejectionReason"),
		VerifiedAt:         timestampPtr(m, "verifiedAt"),
		VerifiedBy:         str(m, "verifiedBy"),
		BlockedAt:          timestampPtr(m, "blockedAt"),
		BlockedBy:          str(m, "blockedBy"),
		BlockReason:        str(m, "blockReason"),
		CreatedAt:          timestamp(m, "createdAt"),
		UpdatedAt:          timestamp(m, "updatedAt"),
	}
	if a.Status == "" {
		a.Status = domain.AccountStatusActive
	}

	var err error
	if a.WalletBalance, err = amount(m, "walletBalance"); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	if a.TotalSpent, err = amount(m, "totalSpent"); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	if a.TotalEarnings, err = amount(m, "totalEarnings"); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}

	if raw, ok := m["documents"].(map[string]any); ok {
		a.Documents = make(map[string]domain.Document, len(raw))
		for key, v := range raw {
			dm, ok := v.(map[string]any)
			if !ok {
				continue
			}
			a.Documents[key] = domain.Document{
				URL:        str(dm, "url"),
				Status:     domain.VerificationStatus(str(dm, "status")),
				VerifiedAt: timestampPtr(dm, "verifiedAt"),
				VerifiedBy: str(dm, "verifiedBy"),
			}
		}
	}
	return a, nil
}

func documentsToMap(docs map[string]domain.Document) map[string]any {
	out := make(map[string]any, len(docs))
	for key, d := range docs {
		dm := map[string]any{"status": string(d.Status)}
		if d.URL != "" {
			dm["url"] = d.URL
		}
		if d.VerifiedAt != nil {
			dm["verifiedAt"] = *d.VerifiedAt
			dm["verifiedBy"] = d.VerifiedBy
		}
		out[key] = dm
	}
	return out
}

func accountToMap(a *domain.Account) map[string]any {
	m := map[string]any{
		"uid":           a.ID,
		"fullName":      a.DisplayName,
		"phone":         a.PhoneNumber,
		"email":         a.Email,
		"accountType":   string(a.AccountType),
		"status":        string(a.Status),
		"walletBalance": money(a.WalletBalance),
		"totalSpent":    money(a.TotalSpent),
		"createdAt":     a.CreatedAt,
		"updatedAt":     a.UpdatedAt,
	}
	if a.AccountType == domain.AccountTypeDriver {
		m["totalEarnings"] = money(a.TotalEarnings)
		m["verificationStatus"] = string(a.VerificationStatus)
		m["isVerified"] = a.VerificationStatus == domain.VerificationApproved
		m["documents"] = documentsToMap(a.Documents)
	}
	return m
}

func transactionFromMap(id string, m map[string]any) (*domain.Transaction, error) {
	amt, err := amount(m, "amount")
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", id, err)
	}
	t := &domain.Transaction{
		ID:                   id,
		UserID:               str(m, "userId"),
		Type:                 domain.TransactionType(str(m, "type")),
		Amount:               amt,
		Status:               domain.TransactionStatus(str(m, "status")),
		PaymentMethod:        str(m, "paymentMethod"),
		TransactionReference: str(m, "transactionId"),
		WithdrawalMethod:     str(m, "withdrawalMethod"),
		AccountNumber:        str(m, "accountNumber"),
		RideID:               str(m, "rideId"),
		Description:          str(m, "description"),
		RejectionReason:      str(m, "rejectionReason"),
		CreatedAt:            timestamp(m, "createdAt"),
		UpdatedAt:            timestamp(m, "updatedAt"),
		VerifiedAt:           timestampPtr(m, "verifiedAt"),
		VerifiedBy:           str(m, "verifiedBy"),
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	return t, nil
}

func transactionToMap(t *domain.Transaction) map[string]any {
	m := map[string]any{
		"userId":    t.UserID,
		"type":      string(t.Type),
		"amount":    money(t.Amount),
		"status":    string(t.Status),
		"createdAt": t.CreatedAt,
		"updatedAt": t.UpdatedAt,
	}
	optional := map[string]string{
		"paymentMethod":    t.PaymentMethod,
		"transactionId":    t.TransactionReference,
		"withdrawalMethod": t.WithdrawalMethod,
		"accountNumber":    t.AccountNumber,
		"rideId":           t.RideID,
		"description":      t.Description,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

func notificationFromMap(id string, m map[string]any) *domain.Notification {
	n := &domain.Notification{
		ID:          id,
		UserID:      str(m, "userId"),
		Kind:        domain.EventKind(str(m, "type")),
		Title:       str(m, "title"),
		Message:     str(m, "message"),
		Recipient:   str(m, "recipient"),
		Channel:     str(m, "channel"),
		Status:      domain.NotificationStatus(str(m, "deliveryStatus")),
		DeliveryRef: str(m, "deliveryRef"),
		Attempts:    integer(m, "attempts"),
		LastError:   str(m, "lastError"),
		Read:        boolean(m, "read"),
		SentBy:      str(m, "sentBy"),
		CreatedAt:   timestamp(m, "createdAt"),
		UpdatedAt:   timestamp(m, "updatedAt"),
	}
	// Notifications written by the web client have no delivery tracking.
	if n.Status == "" {
		n.Status = domain.NotificationStatusDelivered
	}
	return n
}

func notificationToMap(n *domain.Notification) map[string]any {
	m := map[string]any{
		"userId":         n.UserID,
		"type":           string(n.Kind),
		"title":          n.Title,
		"message":        n.Message,
		"recipient":      n.Recipient,
		"channel":        n.Channel,
		"deliveryStatus": string(n.Status),
		"attempts":       int64(n.Attempts),
		"read":           n.Read,
		"createdAt":      n.CreatedAt,
		"updatedAt":      n.UpdatedAt,
	}
	if n.SentBy != "" {
		m["sentBy"] = n.SentBy
	}
	return m
}
