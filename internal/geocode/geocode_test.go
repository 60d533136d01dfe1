package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/splax/onboard/internal/domain"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReverseFlattensAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("User-Agent"); got != "CustomerPortal/1.0 (ops@example.com)" {
			t.Fatalf("unexpected user agent %q", got)
		}
		if r.URL.Query().Get("lat") != "40.7" || r.URL.Query().Get("lon") != "-74" {
			t.Fatalf("unexpected coordinates %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`{"address":{"house_number":"1","road":"Centre Street","building":"","commercial":"Municipal Building","town":"Manhattan","county":"New York County","state":"New York","country":"United States","postcode":"10007"}}`))
	}))
	defer srv.Close()

	cli := New(srv.URL, UserAgent("Customer Portal", "ops@example.com"), time.Second, newLogger())
	got := cli.Reverse(context.Background(), 40.7, -74)
	want := domain.Address{
		Address:    "1 Centre Street Municipal Building",
		City:       "Manhattan",
		State:      "New York",
		Country:    "United States",
		PostalCode: "10007",
	}
	if got != want {
		t.Fatalf("unexpected address\n got: %+v\nwant: %+v", got, want)
	}
}

func TestReverseFallsBackToNeighbourhood(t *testing.T) {
	got := flatten(map[string]string{"suburb": "Brooklyn Heights", "region": "Northeast"})
	if got.Address != "Brooklyn Heights" || got.State != "Northeast" {
		t.Fatalf("unexpected fallback %+v", got)
	}
	got = flatten(map[string]string{"neighbourhood": "DUMBO", "suburb": "Brooklyn"})
	if got.Address != "DUMBO" {
		t.Fatalf("expected neighbourhood preferred, got %q", got.Address)
	}
}

func TestReverseMasksUpstreamFailure(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		},
		"no result": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			cli := New(srv.URL, "ua", time.Second, newLogger())
			if got := cli.Reverse(context.Background(), 1, 1); !got.Empty() {
				t.Fatalf("expected empty address, got %+v", got)
			}
		})
	}
}

func TestReverseTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	cli := New(srv.URL, "ua", 20*time.Millisecond, newLogger())
	if got := cli.Reverse(context.Background(), 1, 1); !got.Empty() {
		t.Fatalf("expected empty address on timeout, got %+v", got)
	}
}

func TestLookupDistinguishesNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"address":{}}`))
	}))
	defer srv.Close()
	cli := New(srv.URL, "ua", time.Second, newLogger())
	if _, err := cli.lookup(context.Background(), 0, 0); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestValidateCoordinates(t *testing.T) {
	if err := ValidateCoordinates(40.7, -74); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range [][2]float64{{200, 0}, {-91, 0}, {0, 181}, {0, -180.5}} {
		if err := ValidateCoordinates(c[0], c[1]); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("expected out of range for %v", c)
		}
	}
}

func TestUserAgentDefaultsName(t *testing.T) {
	if ua := UserAgent("", "x@y.z"); !strings.HasPrefix(ua, "onboard/1.0") {
		t.Fatalf("unexpected user agent %q", ua)
	}
}
