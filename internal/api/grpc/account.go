package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/service"
)

type AccountHandler struct {
	accountSvc service.AccountService
}

func NewAccountHandler(accountSvc service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

func (h *AccountHandler) methods() map[string]rpc {
	return map[string]rpc{
		"RegisterAccount":      h.RegisterAccount,
		"GetAccount":           h.GetAccount,
		"ListNotifications":    h.ListNotifications,
		"MarkNotificationRead": h.MarkNotificationRead,
	}
}

// RegisterAccount creates the wallet record for the authenticated user. Admin accounts can
// only be created by callers whose identity already carries the admin role.
func (h *AccountHandler) RegisterAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	accountType := domain.AccountType(stringField(req, "account_type"))
	if accountType == domain.AccountTypeAdmin && GetRoleFromContext(ctx) != string(domain.AccountTypeAdmin) {
		return nil, status.Error(codes.PermissionDenied, "admin accounts require the admin role")
	}

	account := &domain.Account{
		ID:          userID,
		DisplayName: stringField(req, "display_name"),
		PhoneNumber: stringField(req, "phone_number"),
		Email:       stringField(req, "email"),
		AccountType: accountType,
	}
	if docs := req.GetFields()["documents"].GetStructValue(); docs != nil {
		account.Documents = make(map[string]domain.Document, len(docs.GetFields()))
		for name, url := range docs.GetFields() {
			account.Documents[name] = domain.Document{URL: url.GetStringValue()}
		}
	}

	created, err := h.accountSvc.RegisterAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"account": MapDomainAccountToProto(created)})
}

func (h *AccountHandler) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	account, err := h.accountSvc.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"account": MapDomainAccountToProto(account)})
}
