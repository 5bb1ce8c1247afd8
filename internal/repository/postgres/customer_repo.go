// internal/repository/postgres/customer_repo.go
package postgres

import (
	"context"
	"errors"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindByPhone retrieves a customer by normalized phone
func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (*queue.Customer, error) {
	query := `
		SELECT id, name, phone, created_at
		FROM customers
		WHERE phone = $1
	`

	var c queue.Customer
	err := r.db.QueryRow(ctx, query, phone).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.NewStoreError("find customer", err)
	}
	return &c, nil
}

// Create inserts a customer; the unique constraint on phone decides concurrent creates.
func (r *CustomerRepository) Create(ctx context.Context, c *queue.Customer) error {
	query := `
		INSERT INTO customers (id, name, phone, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, c.ID, c.Name, c.Phone, c.CreatedAt)
	if isUniqueViolation(err) {
		return xerrors.ErrDuplicateEntry
	}
	return xerrors.NewStoreError("create customer", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
