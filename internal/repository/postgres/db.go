// internal/repository/postgres/db.go
package postgres

import (
	"context"

	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB owns the pool the repositories share.
type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

func (db *DB) Queues() *QueueRepository {
	return NewQueueRepository(db.pool)
}

func (db *DB) Customers() *CustomerRepository {
	return NewCustomerRepository(db.pool)
}

func (db *DB) Establishments() *EstablishmentRepository {
	return NewEstablishmentRepository(db.pool)
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return xerrors.NewStoreError("ping", err)
	}
	return nil
}

func (db *DB) Close() {
	db.pool.Close()
}
