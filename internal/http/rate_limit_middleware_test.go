package httpx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/splax/onboard/internal/service/registration"
)

func postFrom(r http.Handler, remoteAddr, forwarded, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/request-creation", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRequestCreationIgnoresSpoofedForwardedFor(t *testing.T) {
	router := newTestRouter(t, &registrationStub{}, &geocoderStub{}, NewMemoryRateLimiter())

	throttled := 0
	for i := 0; i < 20; i++ {
		body := fmt.Sprintf(`{"email":"user%d@example.com"}`, i)
		rr := postFrom(router, "198.51.100.7:41000", fmt.Sprintf("203.0.113.%d", i+1), body)
		if rr.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 20-ruleRequestIP.limit {
		t.Fatalf("expected %d throttled requests, got %d", 20-ruleRequestIP.limit, throttled)
	}
}

func TestRequestCreationLimitsPerEmail(t *testing.T) {
	calls := 0
	stub := &registrationStub{requestFn: func(_ context.Context, in registration.RegistrationInput) (*registration.Staged, error) {
		calls++
		return &registration.Staged{Token: "tok", Email: in.Email}, nil
	}}
	router := newTestRouter(t, stub, &geocoderStub{}, NewMemoryRateLimiter())

	emails := []string{"jane@example.com", "JANE@example.com", " Jane@Example.com ", "jane@EXAMPLE.com"}
	var last *httptest.ResponseRecorder
	for i, email := range emails {
		last = postFrom(router, fmt.Sprintf("192.0.2.%d:5000", i+1), "", fmt.Sprintf(`{"email":%q}`, email))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the address budget is spent, got %d", last.Code)
	}
	if calls != ruleRequestEmail.limit {
		t.Fatalf("expected %d staged requests, got %d", ruleRequestEmail.limit, calls)
	}

	if rr := postFrom(router, "192.0.2.99:5000", "", `{"email":"other@example.com"}`); rr.Code != http.StatusOK {
		t.Fatalf("other addresses should not share the budget, got %d", rr.Code)
	}
}

func TestClientIPTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	router := &Router{trustedProxies: prefixes}

	cases := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{"untrusted peer", "198.51.100.7:1234", "203.0.113.9", "198.51.100.7"},
		{"trusted peer", "10.1.2.3:1234", "203.0.113.9", "203.0.113.9"},
		{"skips trusted hops", "10.1.2.3:1234", "203.0.113.9, 192.0.2.10, 10.0.0.7", "203.0.113.9"},
		{"forged left entry", "10.1.2.3:1234", "1.2.3.4, 198.51.100.2", "198.51.100.2"},
		{"garbage hop", "10.1.2.3:1234", "203.0.113.9, nonsense", "10.1.2.3"},
		{"no header", "10.1.2.3:1234", "", "10.1.2.3"},
		{"mapped v4 peer", "[::ffff:10.1.2.3]:1234", "203.0.113.9", "203.0.113.9"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remote
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if got := router.clientIP(req); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatalf("expected bad prefix to fail")
	}
	if _, err := ParseTrustedProxies([]string{"proxy.internal"}); err == nil {
		t.Fatalf("expected hostname to fail")
	}
}

func TestMemoryRateLimiterWindow(t *testing.T) {
	rl := NewMemoryRateLimiter().(*memoryRateLimiter)
	defer rl.Close()
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	for i := 1; i <= 2; i++ {
		if d := rl.Allow("k", 2, time.Minute); !d.allowed || d.count != i {
			t.Fatalf("hit %d: unexpected decision %+v", i, d)
		}
	}
	if d := rl.Allow("k", 2, time.Minute); d.allowed {
		t.Fatalf("third hit should be refused")
	}
	if d := rl.Allow("other", 2, time.Minute); !d.allowed {
		t.Fatalf("keys must not share a window")
	}

	now = now.Add(time.Minute + time.Second)
	if d := rl.Allow("k", 2, time.Minute); !d.allowed || d.count != 1 {
		t.Fatalf("window should reset, got %+v", d)
	}
}
