package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwtpkg "github.com/splax/onboard/pkg/jwt"
)

func TestTokenCommandSignsAdminToken(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")
	t.Setenv("ONBOARDCTL_CONFIG", filepath.Join(t.TempDir(), "config.json"))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--subject", "ops", "--ttl", "5m"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	claims, err := jwtpkg.ParseAdmin(strings.TrimSpace(out.String()), "s3cret")
	if err != nil {
		t.Fatalf("minted token invalid: %v", err)
	}
	if claims.Subject != "ops" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if left := time.Until(claims.ExpiresAt.Time); left > 5*time.Minute || left < 4*time.Minute {
		t.Fatalf("unexpected expiry in %s", left)
	}
}

func TestLoginThenPendingStats(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")
	t.Setenv("ONBOARDCTL_CONFIG", filepath.Join(t.TempDir(), "config.json"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := jwtpkg.ParseAdmin(token, "s3cret"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"pending":7}`))
	}))
	defer srv.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"login", "--api", srv.URL})
	if err := root.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}

	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"pending", "stats"})
	if err := root.Execute(); err != nil {
		t.Fatalf("pending stats: %v", err)
	}
	if !strings.Contains(out.String(), `"pending": 7`) {
		t.Fatalf("unexpected output %q", out.String())
	}
}
