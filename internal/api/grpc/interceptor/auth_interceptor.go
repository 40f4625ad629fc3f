package interceptor

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"drivekr-wallet-backend/internal/config"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/security"
)

const (
	headerAuthorization = "authorization"
	headerAPIKey        = "x-api-key"

	// Mirrors the keys read by the grpc package.
	keyUserID      = "user-id"
	keyUserRole    = "user-role"
	keyServiceName = "service-name"

	roleAdmin = "admin"
)

type AuthInterceptor struct {
	verifier    security.IdentityVerifier
	serviceKeys *security.ServiceKeyring
}

func NewAuthInterceptor(verifier security.IdentityVerifier, serviceKeys *security.ServiceKeyring) *AuthInterceptor {
	return &AuthInterceptor{verifier: verifier, serviceKeys: serviceKeys}
}

// Unary returns a server interceptor function to authenticate and authorize unary RPCs
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		level := config.GetSecurityLevel(info.FullMethod)

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "metadata is not provided")
		}
		// Copy so that identity headers sent by the client are replaced, never trusted.
		md = md.Copy()
		md.Delete(keyUserID)
		md.Delete(keyUserRole)
		md.Delete(keyServiceName)

		if level == config.SecurityService {
			name, err := i.authenticateService(md)
			if err != nil {
				return nil, err
			}
			md.Set(keyServiceName, name)
			return handler(metadata.NewIncomingContext(ctx, md), req)
		}

		token, err := extractToken(md)
		if err != nil {
			return nil, err
		}
		identity, err := i.verifier.Verify(ctx, token)
		if err != nil {
			if errors.Is(err, security.ErrExpiredToken) {
				return nil, status.Error(codes.Unauthenticated, "token has expired")
			}
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		if level == config.SecurityAdmin && identity.Role != roleAdmin {
			logger.Warn("Admin endpoint called without admin role", "method", info.FullMethod, "userID", identity.UserID)
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}

		md.Set(keyUserID, identity.UserID)
		if identity.Role != "" {
			md.Set(keyUserRole, identity.Role)
		}
		return handler(metadata.NewIncomingContext(ctx, md), req)
	}
}

func (i *AuthInterceptor) authenticateService(md metadata.MD) (string, error) {
	keys := md.Get(headerAPIKey)
	if len(keys) == 0 {
		return "", status.Error(codes.Unauthenticated, "service api key is not provided")
	}
	if i.serviceKeys == nil {
		return "", status.Error(codes.PermissionDenied, "no service keys configured")
	}
	name, ok := i.serviceKeys.Authenticate(keys[0])
	if !ok {
		return "", status.Error(codes.PermissionDenied, "unknown service api key")
	}
	return name, nil
}

func extractToken(md metadata.MD) (string, error) {
	authHeader := md.Get(headerAuthorization)
	if len(authHeader) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization token is not provided")
	}

	token := authHeader[0]
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	if token == "" {
		return "", status.Error(codes.Unauthenticated, "authorization token is empty")
	}
	return token, nil
}
