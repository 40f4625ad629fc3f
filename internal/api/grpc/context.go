package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata keys set by the auth interceptor. Client supplied values are overwritten.
const (
	MetadataUserID      = "user-id"
	MetadataUserRole    = "user-role"
	MetadataServiceName = "service-name"
)

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// GetUserIDFromContext extracts the authenticated user ID from the gRPC metadata.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	if _, ok := metadata.FromIncomingContext(ctx); !ok {
		return "", status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}
	userID := metadataValue(ctx, MetadataUserID)
	if userID == "" {
		return "", status.Errorf(codes.Unauthenticated, "user_id is not provided in metadata")
	}
	return userID, nil
}

// GetRoleFromContext returns the role claimed by the identity provider, if any.
func GetRoleFromContext(ctx context.Context) string {
	return metadataValue(ctx, MetadataUserRole)
}
