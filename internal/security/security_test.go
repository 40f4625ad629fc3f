package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"drivekr-wallet-backend/internal/config"
)

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret", "drivekr")

	t.Run("Round trip", func(t *testing.T) {
		token, err := tm.GenerateAccessToken("uid-123", "admin")
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "uid-123", claims.UserID)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, "uid-123", claims.Subject)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := NewTokenManager("other", "drivekr").GenerateAccessToken("uid-1", "")
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		token, err := NewTokenManager("test-secret", "someone-else").GenerateAccessToken("uid-1", "")
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		claims := UserClaims{
			UserID: "uid-1",
			Type:   TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "drivekr",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Wrong type", func(t *testing.T) {
		claims := UserClaims{UserID: "uid-1", Type: "refresh", RegisteredClaims: jwt.RegisteredClaims{Issuer: "drivekr"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTVerifier(t *testing.T) {
	tm := NewTokenManager("s", "")
	token, err := tm.GenerateAccessToken("uid-9", "driver")
	require.NoError(t, err)

	id, err := NewJWTVerifier(tm).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "uid-9", Role: "driver"}, id)
}

type fakeIDTokens struct {
	token *auth.Token
	err   error
}

func (f fakeIDTokens) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	v := &firebaseVerifier{client: fakeIDTokens{token: &auth.Token{
		UID:    "firebase-uid",
		Claims: map[string]interface{}{"role": "admin"},
	}}}
	id, err := v.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid", id.UserID)
	assert.Equal(t, "admin", id.Role)

	v = &firebaseVerifier{client: fakeIDTokens{token: &auth.Token{UID: "u2"}}}
	id, err = v.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Empty(t, id.Role)

	v = &firebaseVerifier{client: fakeIDTokens{err: errors.New("signature mismatch")}}
	_, err = v.Verify(context.Background(), "id-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestServiceKeyring(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ride-service-key"), bcrypt.MinCost)
	require.NoError(t, err)
	ring := NewServiceKeyring([]config.ServiceKey{{Name: "ride-service", KeyHash: string(hash)}})

	name, ok := ring.Authenticate("ride-service-key")
	assert.True(t, ok)
	assert.Equal(t, "ride-service", name)

	_, ok = ring.Authenticate("wrong")
	assert.False(t, ok)
	_, ok = ring.Authenticate("")
	assert.False(t, ok)
}

func TestHashKey(t *testing.T) {
	hash, err := HashKey("k")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("k")))
}
