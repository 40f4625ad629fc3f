package security

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"drivekr-wallet-backend/internal/logger"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Role   string
}

// IdentityVerifier turns a bearer token into an Identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type jwtVerifier struct {
	tokens TokenManager
}

// NewJWTVerifier accepts the access tokens issued by tokens.
func NewJWTVerifier(tokens TokenManager) IdentityVerifier {
	return &jwtVerifier{tokens: tokens}
}

func (v *jwtVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type firebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier accepts Firebase Authentication ID tokens. The role comes from the
// "role" custom claim set by the admin tooling.
func NewFirebaseVerifier(client *auth.Client) IdentityVerifier {
	return &firebaseVerifier{client: client}
}

func (v *firebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	logger.ExternalServiceCall("firebase-auth", "VerifyIDToken")
	t, err := v.client.VerifyIDToken(ctx, token)
	logger.ExternalServiceResult("firebase-auth", "VerifyIDToken", err)
	if err != nil {
		if auth.IsIDTokenExpired(err) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, _ := t.Claims["role"].(string)
	return &Identity{UserID: t.UID, Role: role}, nil
}
