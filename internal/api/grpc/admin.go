package grpc

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"drivekr-wallet-backend/internal/service"
)

type AdminHandler struct {
	adminSvc service.VerificationService
}

func NewAdminHandler(adminSvc service.VerificationService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

func (h *AdminHandler) methods() map[string]rpc {
	return map[string]rpc{
		"ApproveTransaction":             h.ApproveTransaction,
		"RejectTransaction":              h.RejectTransaction,
		"ApproveDriverDocuments":         h.ApproveDriverDocuments,
		"RejectDriverDocuments":          h.RejectDriverDocuments,
		"BlockUser":                      h.BlockUser,
		"UnblockUser":                    h.UnblockUser,
		"ListPendingTransactions":        h.ListPendingTransactions,
		"ListPendingDriverVerifications": h.ListPendingDriverVerifications,
		"GetPlatformStats":               h.GetPlatformStats,
		"SendBroadcast":                  h.SendBroadcast,
	}
}

func success() (*structpb.Struct, error) {
	return respond(map[string]any{"success": true})
}

func (h *AdminHandler) ApproveTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	txn, err := h.adminSvc.ApproveTransaction(ctx, stringField(req, "transaction_id"), adminID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"transaction": MapDomainTransactionToProto(txn)})
}

func (h *AdminHandler) RejectTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	txn, err := h.adminSvc.RejectTransaction(ctx, stringField(req, "transaction_id"), stringField(req, "reason"), adminID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"transaction": MapDomainTransactionToProto(txn)})
}

func (h *AdminHandler) ApproveDriverDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.adminSvc.ApproveDriverDocuments(ctx, stringField(req, "user_id"), adminID); err != nil {
		return nil, err
	}
	return success()
}

func (h *AdminHandler) RejectDriverDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.adminSvc.RejectDriverDocuments(ctx, stringField(req, "user_id"), stringField(req, "reason"), adminID); err != nil {
		return nil, err
	}
	return success()
}

func (h *AdminHandler) BlockUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.adminSvc.BlockUser(ctx, stringField(req, "user_id"), stringField(req, "reason"), adminID); err != nil {
		return nil, err
	}
	return success()
}

func (h *AdminHandler) UnblockUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.adminSvc.UnblockUser(ctx, stringField(req, "user_id"), adminID); err != nil {
		return nil, err
	}
	return success()
}

func (h *AdminHandler) ListPendingTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	txns, err := h.adminSvc.ListPendingTransactions(ctx, adminID, intField(req, "limit"))
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"transactions": mapTransactions(txns)})
}

func (h *AdminHandler) ListPendingDriverVerifications(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	drivers, err := h.adminSvc.ListPendingDriverVerifications(ctx, adminID, intField(req, "limit"))
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"drivers": mapAccounts(drivers)})
}

func (h *AdminHandler) GetPlatformStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := h.adminSvc.GetPlatformStats(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return respond(MapDomainPlatformStatsToProto(stats))
}

func (h *AdminHandler) SendBroadcast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	n, err := h.adminSvc.SendBroadcast(ctx, stringField(req, "message"), adminID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"recipients": n,
		"message":    fmt.Sprintf("Broadcast sent to %d users", n),
	})
}
