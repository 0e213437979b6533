package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/analysis-service/internal/domain"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerify_ValidToken(t *testing.T) {
	t.Parallel()

	verifier, err := NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewJWTVerifier error: %v", err)
	}
	token := signToken(t, "test-secret", jwt.MapClaims{
		"userId": "user-123",
		"email":  "creator@example.com",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UserID != "user-123" || claims.Email != "creator@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	verifier, err := NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewJWTVerifier error: %v", err)
	}

	wrongSecret := signToken(t, "other-secret", jwt.MapClaims{"userId": "user-123"})
	if _, err := verifier.Verify(wrongSecret); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong secret, got %v", err)
	}

	expired := signToken(t, "test-secret", jwt.MapClaims{
		"userId": "user-123",
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := verifier.Verify(expired); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}

	missingSubject := signToken(t, "test-secret", jwt.MapClaims{"email": "creator@example.com"})
	if _, err := verifier.Verify(missingSubject); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for missing userId, got %v", err)
	}

	if _, err := verifier.Verify("not-a-token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for garbage, got %v", err)
	}
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTVerifier(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
