package jwt

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	token, err := GenerateAdminToken("ops@example.com", "s3cret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAdmin(token, "s3cret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAdminToken("ops", "s3cret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAdmin(token, "other"); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := GenerateAdminToken("ops", "s3cret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAdmin(token, "s3cret"); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestParseAdminRequiresRole(t *testing.T) {
	claims := Claims{
		Role: "viewer",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "onboard",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAdmin(token, "s3cret"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}
