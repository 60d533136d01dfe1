package servicenow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cli, err := New(srv.URL, "admin", "pw")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cli
}

func TestCreateReturnsSysID(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/api/now/table/customer_account" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			t.Fatalf("expected basic auth, got %q/%q", user, pass)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["name"] != "Acme" {
			t.Fatalf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":{"sys_id":"acc-1","name":"Acme"}}`))
	})

	id, err := cli.Create(context.Background(), TableAccount, map[string]string{"name": "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "acc-1" {
		t.Fatalf("unexpected sys_id %q", id)
	}
}

func TestCreateWithoutSysIDFails(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{}}`))
	})
	if _, err := cli.Create(context.Background(), TableContact, map[string]string{}); !errors.Is(err, ErrMissingSysID) {
		t.Fatalf("expected ErrMissingSysID, got %v", err)
	}
}

func TestErrorResponseBecomesAPIError(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"User Not Authenticated","detail":"Required to provide Auth information"},"status":"failure"}`))
	})
	_, err := cli.Query(context.Background(), TableContact, "email=a@b.co", 1)
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", apiErr.Status)
	}
	if apiErr.Message != "User Not Authenticated: Required to provide Auth information" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestContactExistsQueriesByEmail(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sysparm_query") != "email=jane@example.com" {
			t.Fatalf("unexpected query %q", q.Get("sysparm_query"))
		}
		if q.Get("sysparm_limit") != "1" || q.Get("sysparm_fields") != "sys_id" {
			t.Fatalf("unexpected params %v", q)
		}
		_, _ = w.Write([]byte(`{"result":[{"sys_id":"c-1"}]}`))
	})
	exists, err := cli.ContactExists(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("contact exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected contact to exist")
	}
}

func TestDeleteTargetsRecord(t *testing.T) {
	called := false
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete || r.URL.Path != "/api/now/table/cmn_location/loc-9" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := cli.Delete(context.Background(), TableLocation, "loc-9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !called {
		t.Fatalf("expected delete request")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("  ", "u", "p"); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
