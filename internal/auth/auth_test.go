package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestJWT_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, exp, err := m.Generate("ops@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("expected expiry in the future")
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Email != "ops@example.com" {
		t.Fatalf("expected ops@example.com, got %s", claims.Email)
	}
}

func TestJWT_Rejects(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	other, _, _ := NewJWTManager("other", time.Hour).Generate("ops@example.com")
	if _, err := m.Validate(other); err == nil {
		t.Fatal("expected token signed with another secret to fail")
	}

	expired, _, _ := NewJWTManager("secret", -time.Minute).Generate("ops@example.com")
	if _, err := m.Validate(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Email: "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, _ := foreign.SignedString([]byte("secret"))
	if _, err := m.Validate(signed); err == nil {
		t.Fatal("expected token from another issuer to fail")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{Email: "ops@example.com"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := m.Validate(unsigned); err == nil {
		t.Fatal("expected unsigned token to fail")
	}
}

func TestSecretEqual(t *testing.T) {
	tests := []struct {
		presented, expected string
		want                bool
	}{
		{"s3cret", "s3cret", true},
		{"s3cret", "s3cre", false},
		{"", "s3cret", false},
		{"", "", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		if got := SecretEqual(tt.presented, tt.expected); got != tt.want {
			t.Fatalf("SecretEqual(%q, %q) = %v, want %v", tt.presented, tt.expected, got, tt.want)
		}
	}
}

func TestCredentials(t *testing.T) {
	c, err := NewCredentials("ops@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Verify("ops@example.com", "hunter2") {
		t.Fatal("expected valid credentials to verify")
	}
	if c.Verify("ops@example.com", "wrong") || c.Verify("other@example.com", "hunter2") {
		t.Fatal("expected invalid credentials to fail")
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	pre, err := NewCredentials("ops@example.com", string(hash))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pre.Verify("ops@example.com", "hunter2") {
		t.Fatal("expected pre-hashed password to verify")
	}

	if _, err := NewCredentials("", "x"); err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("expected missing email to fail, got %v", err)
	}
}
