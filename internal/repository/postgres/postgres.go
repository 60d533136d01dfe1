package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/onboard/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	codec repository.Codec
}

// New constructs a Repository.
func New(pool *pgxpool.Pool, codec repository.Codec) *Repository {
	return &Repository{pool: pool, codec: codec}
}

var _ repository.PendingRegistrationStore = (*Repository)(nil)

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pooled connections.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
