package auth

import (
	"testing"
	"time"

	"marketchat/internal/config"
	"marketchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(secret string) *Service {
	return NewService(&config.Config{
		JWT: config.JWT{
			Secret:    []byte(secret),
			ExpiresIn: time.Hour,
		},
	})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService("test-secret")

	id := Identity{UserID: "55", Name: "Vera", Role: models.RoleMerchant, ShopID: "42"}
	token, err := svc.GenerateToken(id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.IdentityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, err := newTestService("secret-a").GenerateToken(Identity{UserID: "1", Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = newTestService("secret-b").IdentityFromToken(token)
	assert.Error(t, err)
}

func TestTokenWrongMethodRejected(t *testing.T) {
	// Unsigned tokens must not pass the HMAC method check.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestService("test-secret").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenExpiredRejected(t *testing.T) {
	svc := NewService(&config.Config{
		JWT: config.JWT{
			Secret:    []byte("test-secret"),
			ExpiresIn: -time.Minute,
		},
	})

	token, err := svc.GenerateToken(Identity{UserID: "1", Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = svc.IdentityFromToken(token)
	assert.Error(t, err)
}

func TestTokenMissingUserIDRejected(t *testing.T) {
	claims := jwt.MapClaims{
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newTestService("test-secret").IdentityFromToken(token)
	assert.Error(t, err)
}
