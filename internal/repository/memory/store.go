package memory

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/repository"
)

// DefaultCleanupInterval is how often go-cache evicts entries whose TTL elapsed.
const DefaultCleanupInterval = 10 * time.Minute

// Store keeps pending registrations in process memory. Contents are lost on restart.
type Store struct {
	cache *gocache.Cache
}

var _ repository.PendingRegistrationStore = (*Store)(nil)

// New constructs an in-memory store.
func New(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Store{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Put stores reg under its token. The token must not already be present.
func (s *Store) Put(_ context.Context, reg domain.PendingRegistration, ttl time.Duration) error {
	token := strings.TrimSpace(reg.Token)
	if token == "" {
		return repository.ErrInvalidArgument
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if err := s.cache.Add(token, reg, ttl); err != nil {
		return repository.ErrInvalidArgument
	}
	return nil
}

// Get returns the registration for token, including logically expired ones still held.
func (s *Store) Get(_ context.Context, token string) (*domain.PendingRegistration, error) {
	value, found := s.cache.Get(strings.TrimSpace(token))
	if !found {
		return nil, repository.ErrNotFound
	}
	reg, ok := value.(domain.PendingRegistration)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &reg, nil
}

// Delete removes token. Deleting an unknown token is not an error.
func (s *Store) Delete(_ context.Context, token string) error {
	s.cache.Delete(strings.TrimSpace(token))
	return nil
}

// DeleteExpired removes registrations whose ExpiresAt is before now.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	removed := 0
	for token, item := range s.cache.Items() {
		reg, ok := item.Object.(domain.PendingRegistration)
		if !ok || reg.Expired(now) {
			s.cache.Delete(token)
			removed++
		}
	}
	return removed, nil
}

// Count reports how many registrations are currently held.
func (s *Store) Count(_ context.Context) (int, error) {
	return len(s.cache.Items()), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close drops all entries.
func (s *Store) Close() error {
	s.cache.Flush()
	return nil
}
