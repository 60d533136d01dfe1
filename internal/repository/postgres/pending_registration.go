package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/repository"
)

const (
	pendingInsert = `INSERT INTO pending_registrations (
		token,
		payload,
		created_at,
		expires_at,
		purge_at
	) VALUES (
		$1,$2,$3,$4,$5
	)`
	pendingSelect = `SELECT payload FROM pending_registrations WHERE token = $1 AND purge_at > NOW()`
)

// Put persists a pending registration. purge_at bounds how long the row is visible.
func (r *Repository) Put(ctx context.Context, reg domain.PendingRegistration, ttl time.Duration) error {
	token := strings.TrimSpace(reg.Token)
	if token == "" {
		return repository.ErrInvalidArgument
	}
	payload, err := r.codec.Encode(reg)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt := reg.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	purgeAt := now.Add(ttl)
	if ttl <= 0 {
		purgeAt = reg.ExpiresAt
	}
	_, err = r.pool.Exec(ctx, pendingInsert, token, payload, createdAt.UTC(), reg.ExpiresAt.UTC(), purgeAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrInvalidArgument
		}
		return fmt.Errorf("insert pending registration: %w", err)
	}
	return nil
}

// Get fetches a pending registration by token.
func (r *Repository) Get(ctx context.Context, token string) (*domain.PendingRegistration, error) {
	var payload []byte
	if err := r.pool.QueryRow(ctx, pendingSelect, strings.TrimSpace(token)).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select pending registration: %w", err)
	}
	return r.codec.Decode(payload)
}

// Delete removes a pending registration.
func (r *Repository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM pending_registrations WHERE token = $1`
	if _, err := r.pool.Exec(ctx, query, strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("delete pending registration: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose logical expiry or purge deadline passed.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM pending_registrations WHERE expires_at < $1 OR purge_at < $1`
	tag, err := r.pool.Exec(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired registrations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Count reports visible pending registrations.
func (r *Repository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM pending_registrations WHERE purge_at > NOW()`
	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending registrations: %w", err)
	}
	return count, nil
}
