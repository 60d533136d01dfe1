package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/repository"
)

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := New(time.Minute)
	reg := domain.PendingRegistration{
		Token:     "tok-1",
		Data:      domain.RegistrationData{Email: "jane@example.com"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Put(ctx, reg, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Data.Email != "jane@example.com" {
		t.Fatalf("unexpected email %q", got.Data.Email)
	}
	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "tok-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStorePutRejectsDuplicateToken(t *testing.T) {
	ctx := context.Background()
	store := New(time.Minute)
	reg := domain.PendingRegistration{Token: "dup"}
	if err := store.Put(ctx, reg, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, reg, time.Hour); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := store.Put(ctx, domain.PendingRegistration{}, time.Hour); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected empty token rejection, got %v", err)
	}
}

func TestStoreTTLElapses(t *testing.T) {
	ctx := context.Background()
	store := New(time.Minute)
	if err := store.Put(ctx, domain.PendingRegistration{Token: "short"}, 20*time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := store.Get(ctx, "short"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected entry to lapse, got %v", err)
	}
}

func TestStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := New(time.Minute)
	now := time.Now()
	_ = store.Put(ctx, domain.PendingRegistration{Token: "old", ExpiresAt: now.Add(-time.Minute)}, time.Hour)
	_ = store.Put(ctx, domain.PendingRegistration{Token: "new", ExpiresAt: now.Add(time.Minute)}, time.Hour)

	removed, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	count, _ := store.Count(ctx)
	if count != 1 {
		t.Fatalf("expected one remaining, got %d", count)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Fatalf("expected live entry to remain: %v", err)
	}
}
