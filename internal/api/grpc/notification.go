package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

func (h *AccountHandler) ListNotifications(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := h.accountSvc.ListNotifications(ctx, userID, intField(req, "limit"))
	if err != nil {
		return nil, err
	}
	out := make([]any, len(notes))
	for i := range notes {
		out[i] = MapDomainNotificationToProto(&notes[i])
	}
	return respond(map[string]any{"notifications": out})
}

func (h *AccountHandler) MarkNotificationRead(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.accountSvc.MarkNotificationRead(ctx, userID, stringField(req, "notification_id")); err != nil {
		return nil, err
	}
	return success()
}
