package repository

import (
	"context"
	"time"

	"github.com/splax/onboard/internal/domain"
)

// PendingRegistrationStore holds staged registrations keyed by confirmation token.
// Implementations keep a record at least until ttl elapses and must be safe for
// concurrent use.
type PendingRegistrationStore interface {
	Put(ctx context.Context, reg domain.PendingRegistration, ttl time.Duration) error
	Get(ctx context.Context, token string) (*domain.PendingRegistration, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// ProvisionMirror records completed provisioning results outside ServiceNow.
type ProvisionMirror interface {
	RecordProvisioned(ctx context.Context, result domain.ProvisionResult) error
}
