// internal/repository/postgres/establishment_repo.go
package postgres

import (
	"context"
	"errors"

	"waitlist-service/internal/domain/establishment"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EstablishmentRepository struct {
	db *pgxpool.Pool
}

func NewEstablishmentRepository(db *pgxpool.Pool) *EstablishmentRepository {
	return &EstablishmentRepository{db: db}
}

func (r *EstablishmentRepository) Create(ctx context.Context, e *establishment.Establishment) error {
	query := `
		INSERT INTO establishments (id, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, e.ID, e.Name, e.PasswordHash).Scan(&e.CreatedAt)
	if isUniqueViolation(err) {
		return xerrors.ErrDuplicateEntry
	}
	return xerrors.NewStoreError("create establishment", err)
}

func (r *EstablishmentRepository) FindByID(ctx context.Context, id string) (*establishment.Establishment, error) {
	query := `
		SELECT id, name, password_hash, created_at
		FROM establishments
		WHERE id = $1
	`

	var e establishment.Establishment
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.Name, &e.PasswordHash, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.NewStoreError("find establishment", err)
	}
	return &e, nil
}

// List returns establishments newest first.
func (r *EstablishmentRepository) List(ctx context.Context, limit, offset int) ([]establishment.Establishment, error) {
	query := `
		SELECT id, name, password_hash, created_at
		FROM establishments
		ORDER BY created_at DESC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, xerrors.NewStoreError("list establishments", err)
	}
	defer rows.Close()

	list := make([]establishment.Establishment, 0)
	for rows.Next() {
		var e establishment.Establishment
		if err := rows.Scan(&e.ID, &e.Name, &e.PasswordHash, &e.CreatedAt); err != nil {
			return nil, xerrors.NewStoreError("list establishments", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.NewStoreError("list establishments", err)
	}
	return list, nil
}
