package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/resourcewise/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:          "test-secret-key-for-jwt-testing",
		Issuer:          config.DefaultJWTIssuer,
		ExpirationHours: 24,
	}
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := NewJWTService(testJWTConfig())
	userID := uuid.New()

	token, err := service.GenerateToken(userID)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3, "token should have header.payload.signature")

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, config.DefaultJWTIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	getter, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, getter.GetUserID())
}

func TestJWTService_GenerateToken_UniqueTokens(t *testing.T) {
	service := NewJWTService(testJWTConfig())
	userID := uuid.New()

	first, err := service.GenerateToken(userID)
	require.NoError(t, err)
	second, err := service.GenerateToken(userID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "token IDs make every token distinct")
}

func TestJWTService_GenerateToken_RequiresUser(t *testing.T) {
	_, err := NewJWTService(testJWTConfig()).GenerateToken(uuid.Nil)
	assert.Error(t, err)
}

func TestJWTService_ValidateToken_Failures(t *testing.T) {
	service := NewJWTService(testJWTConfig())
	valid, err := service.GenerateToken(uuid.New())
	require.NoError(t, err)

	otherSecret := testJWTConfig()
	otherSecret.Secret = "a-completely-different-secret"
	forged, err := NewJWTService(otherSecret).GenerateToken(uuid.New())
	require.NoError(t, err)

	otherIssuer := testJWTConfig()
	otherIssuer.Issuer = "someone-else"
	foreign, err := NewJWTService(otherIssuer).GenerateToken(uuid.New())
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: uuid.New()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{"empty", "", "token string is empty"},
		{"garbage", "not.a.jwt", "malformed token"},
		{"two segments", "abc.def", "malformed token"},
		{"wrong secret", forged, "invalid token signature"},
		{"wrong issuer", foreign, "failed to parse token"},
		{"alg none", none, "invalid token signature"},
		{"tampered payload", valid[:len(valid)-4] + "AAAA", "invalid token signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJWTService_TokenExpiration(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpirationHours = 1
	service := NewJWTService(cfg)
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(uuid.New())
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour), claims.ExpiresAt.Time.UTC())

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}
