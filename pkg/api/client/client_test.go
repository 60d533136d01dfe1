package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPendingStatsSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/pending" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected authorization %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pending":4,"timestamp":"2026-01-02T03:04:05Z"}`))
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	stats, err := cli.PendingStats(context.Background(), " tok ")
	if err != nil {
		t.Fatalf("pending stats: %v", err)
	}
	if stats.Pending != 4 || stats.Timestamp.Year() != 2026 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSweepPendingSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authentication failed"}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.SweepPending(context.Background(), "bad")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "authentication failed" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestHealthDecodesDegradedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","components":{"redis":{"status":"down","error":"dial tcp"}}}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	health, err := cli.Health(context.Background())
	if err == nil {
		t.Fatalf("expected error for degraded service")
	}
	if health.Status != "degraded" || health.Components["redis"].Status != "down" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestNewDefaultsScheme(t *testing.T) {
	cli, err := New("localhost:5000/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:5000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
	cli, _ = New("")
	if cli.baseURL != DefaultBaseURL {
		t.Fatalf("unexpected default %q", cli.baseURL)
	}
}
