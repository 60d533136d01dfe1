package domain

import (
	"testing"
	"time"
)

func TestPendingRegistrationExpired(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	p := PendingRegistration{ExpiresAt: now.Add(time.Hour)}
	if p.Expired(now) {
		t.Fatalf("expected registration to be live")
	}
	if !p.Expired(now.Add(time.Hour + time.Second)) {
		t.Fatalf("expected registration to be expired")
	}
	if (PendingRegistration{}).Expired(now) {
		t.Fatalf("zero expiry never expires")
	}
}

func TestLocationWithAddress(t *testing.T) {
	loc := Location{Latitude: 40.7, Longitude: -74}
	if loc.HasAddress() {
		t.Fatalf("expected no address")
	}
	loc = loc.WithAddress(Address{City: "New York", PostalCode: "10007"})
	if !loc.HasAddress() || loc.City != "New York" || loc.Latitude != 40.7 {
		t.Fatalf("unexpected location %+v", loc)
	}
}
