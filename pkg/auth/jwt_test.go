package auth

import (
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetSigningSecret forces the next token operation to re-resolve the secret
func resetSigningSecret() {
	jwtSecretOnce = sync.Once{}
	jwtSecret = nil
}

func TestTokenSignedWithEnvironmentSecret(t *testing.T) {
	// The secret lands in the environment after package init, the way
	// godotenv populates it during startup. Token signing must pick it up.
	t.Setenv("JWT_SECRET", "env-provided-secret")
	resetSigningSecret()
	t.Cleanup(resetSigningSecret)

	session := UserSession{ID: "2", Name: "Ervin Howell", Role: "UPLOADER"}
	tokenString, err := GenerateToken(session)
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte("env-provided-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	claims := parsed.Claims.(*Claims)
	assert.Equal(t, session, claims.User)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	session := UserSession{ID: "4", Name: "Patricia Lebsack", Role: "REVIEWER"}
	tokenString, err := GenerateToken(session)
	require.NoError(t, err)

	claims, err := ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, session, claims.User)
	assert.Equal(t, session.ID, claims.Subject)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	tokenString, err := GenerateToken(UserSession{ID: "2", Name: "Ervin Howell", Role: "UPLOADER"})
	require.NoError(t, err)

	_, err = ValidateToken(tokenString + "x")
	assert.Error(t, err)

	// Token signed with a different key must not validate
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		User: UserSession{ID: "2", Name: "Ervin Howell", Role: "ADMIN"},
	})
	signed, err := foreign.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = ValidateToken(signed)
	assert.Error(t, err)
}
