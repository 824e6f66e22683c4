package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tube-curator/internal/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, ttl time.Duration) *TokenManager {
	t.Helper()
	manager, err := NewTokenManager(TokenConfig{
		Secret:    testSecret,
		Issuer:    "tube-curator",
		AccessTTL: ttl,
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return manager
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager(TokenConfig{Secret: []byte("short")}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Hour)
	user := models.User{ID: "user-1", Email: "mod@example.com", Roles: []string{models.RoleModerator}}

	token, expiresAt, err := manager.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	principal, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.SubjectID != "user-1" || principal.Email != "mod@example.com" || principal.Role != models.RoleModerator {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if !principal.HasAnyRole(models.RoleModerator, models.RoleAdmin) {
		t.Fatalf("expected moderator role match")
	}
}

func TestVerifyMissingRoleDefaultsToUser(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "user-2",
		Issuer:    "tube-curator",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	principal, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.Role != models.RoleUser {
		t.Fatalf("expected default role %q, got %q", models.RoleUser, principal.Role)
	}
}

func TestVerifyFailuresCollapseToInvalidToken(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Hour)
	user := models.User{ID: "user-3", Email: "x@example.com"}

	valid, _, err := manager.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	expiredManager := newTestManager(t, time.Nanosecond)
	expired, _, err := expiredManager.Issue(user)
	if err != nil {
		t.Fatalf("Issue expired: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	tampered := valid[:len(valid)-4] + "AAAA"

	cases := map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"tampered":  tampered,
		"expired":   expired,
		"truncated": strings.Split(valid, ".")[0],
	}
	for name, token := range cases {
		if _, err := manager.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Hour)
	other, err := NewTokenManager(TokenConfig{Secret: testSecret, Issuer: "someone-else", AccessTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	token, _, err := other.Issue(models.User{ID: "user-4"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := manager.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail verification, got %v", err)
	}
}
