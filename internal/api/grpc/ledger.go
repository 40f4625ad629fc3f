package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/service"
)

type LedgerHandler struct {
	ledgerSvc service.LedgerService
}

func NewLedgerHandler(ledgerSvc service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

func (h *LedgerHandler) methods() map[string]rpc {
	return map[string]rpc{
		"GetBalance":            h.GetBalance,
		"RequestDeposit":        h.RequestDeposit,
		"RequestWithdrawal":     h.RequestWithdrawal,
		"SettleRide":            h.SettleRide,
		"GetTransactionHistory": h.GetTransactionHistory,
		"GetTransactionStats":   h.GetTransactionStats,
	}
}

func (h *LedgerHandler) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := h.ledgerSvc.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"user_id": userID, "balance": balance.StringFixed(2)})
}

func (h *LedgerHandler) RequestDeposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	txn, err := h.ledgerSvc.RequestDeposit(ctx, userID, amount,
		stringField(req, "payment_method"), stringField(req, "transaction_reference"))
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"transaction": MapDomainTransactionToProto(txn),
		"message":     "Deposit request submitted. Share screenshot via WhatsApp for verification.",
	})
}

func (h *LedgerHandler) RequestWithdrawal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	txn, err := h.ledgerSvc.RequestWithdrawal(ctx, userID, amount,
		stringField(req, "withdrawal_method"), stringField(req, "account_number"))
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"transaction": MapDomainTransactionToProto(txn),
		"message":     "Withdrawal request submitted. It will be processed within 24-48 hours.",
	})
}

// SettleRide is called by the ride service with a service key, so the parties come from
// the request rather than from the caller identity.
func (h *LedgerHandler) SettleRide(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	res, err := h.ledgerSvc.SettleRide(ctx, domain.RideSettlement{
		RideID:      stringField(req, "ride_id"),
		RiderID:     stringField(req, "rider_id"),
		DriverID:    stringField(req, "driver_id"),
		GrossAmount: amount,
	})
	if err != nil {
		return nil, err
	}
	return respond(MapDomainSettlementToProto(res))
}

func (h *LedgerHandler) GetTransactionHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	txns, err := h.ledgerSvc.GetTransactionHistory(ctx, userID, intField(req, "limit"))
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"transactions": mapTransactions(txns)})
}

func (h *LedgerHandler) GetTransactionStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := h.ledgerSvc.GetTransactionStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return respond(MapDomainStatsToProto(stats))
}
