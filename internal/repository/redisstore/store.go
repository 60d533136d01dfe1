package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/repository"
)

const keyPrefix = "onboard:pending:"

// Store persists pending registrations in Redis with native key expiry.
type Store struct {
	client *redis.Client
	codec  repository.Codec
}

var _ repository.PendingRegistrationStore = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, codec repository.Codec) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, codec: codec}, nil
}

// Client exposes the underlying connection so other components can share it.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Put stores reg with SET NX so a token collision never overwrites.
func (s *Store) Put(ctx context.Context, reg domain.PendingRegistration, ttl time.Duration) error {
	token := strings.TrimSpace(reg.Token)
	if token == "" {
		return repository.ErrInvalidArgument
	}
	payload, err := s.codec.Encode(reg)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+token, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store pending registration: %w", err)
	}
	if !ok {
		return repository.ErrInvalidArgument
	}
	return nil
}

// Get loads the registration for token.
func (s *Store) Get(ctx context.Context, token string) (*domain.PendingRegistration, error) {
	payload, err := s.client.Get(ctx, keyPrefix+strings.TrimSpace(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load pending registration: %w", err)
	}
	return s.codec.Decode(payload)
}

// Delete removes token.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+strings.TrimSpace(token)).Err(); err != nil {
		return fmt.Errorf("delete pending registration: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose logical expiry passed but whose key TTL has not.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("load %s: %w", key, err)
		}
		reg, err := s.codec.Decode(payload)
		if err == nil && !reg.Expired(now) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan pending registrations: %w", err)
	}
	return removed, nil
}

// Count reports the number of pending keys.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan pending registrations: %w", err)
	}
	return count, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
