package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier(TokenVerifierConfig{})
	require.Error(t, err)
}

func TestVerifyReturnsClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := NewTokenVerifier(TokenVerifierConfig{
		Secret: "test-secret",
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)

	signed := signTestToken(t, "test-secret", Claims{
		Email: "pm@example.com",
		Role:  "authenticated",
		Metadata: map[string]string{
			"role": "pm",
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	claims, err := verifier.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID())
	require.Equal(t, "pm@example.com", claims.Email)
	require.Equal(t, "pm", claims.Metadata["role"])
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := NewTokenVerifier(TokenVerifierConfig{
		Secret: "test-secret",
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)

	signed := signTestToken(t, "test-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	})

	_, err = verifier.Verify(signed)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier, err := NewTokenVerifier(TokenVerifierConfig{Secret: "right-secret"})
	require.NoError(t, err)

	signed := signTestToken(t, "wrong-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err = verifier.Verify(signed)
	require.Error(t, err)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	verifier, err := NewTokenVerifier(TokenVerifierConfig{Secret: "test-secret"})
	require.NoError(t, err)

	signed := signTestToken(t, "test-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err = verifier.Verify(signed)
	require.Error(t, err)
	require.Contains(t, err.Error(), "subject")
}

func TestVerifyEnforcesAudience(t *testing.T) {
	verifier, err := NewTokenVerifier(TokenVerifierConfig{
		Secret:   "test-secret",
		Audience: "authenticated",
	})
	require.NoError(t, err)

	signed := signTestToken(t, "test-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"other"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err = verifier.Verify(signed)
	require.Error(t, err)
}
