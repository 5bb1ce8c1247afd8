// internal/repository/postgres/queue_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// insertAttempts bounds the insert/select loop in InsertIfAbsent. A miss on both
// sides means the conflicting entry was completed between the two statements.
const insertAttempts = 3

type QueueRepository struct {
	db *pgxpool.Pool
}

func NewQueueRepository(db *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{db: db}
}

const entryColumns = `
	q.id, q.establishment_id, q.customer_id, q.status,
	q.created_at, q.called_at, q.completed_at,
	c.name, c.phone`

// Snapshot returns active entries in FIFO order. The id tiebreak keeps the order
// stable for rows sharing a timestamp.
func (r *QueueRepository) Snapshot(ctx context.Context, establishmentID string) ([]queue.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM queue q
		JOIN customers c ON c.id = q.customer_id
		WHERE q.establishment_id = $1 AND q.status IN ('waiting', 'called')
		ORDER BY q.created_at ASC, q.id ASC
	`

	rows, err := r.db.Query(ctx, query, establishmentID)
	if err != nil {
		return nil, xerrors.NewStoreError("snapshot", err)
	}
	defer rows.Close()

	entries := make([]queue.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, xerrors.NewStoreError("snapshot", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.NewStoreError("snapshot", err)
	}
	return entries, nil
}

// InsertIfAbsent relies on the partial unique index over active entries; a
// conflicting insert is skipped and the surviving entry is read back.
func (r *QueueRepository) InsertIfAbsent(ctx context.Context, establishmentID, customerID string) (*queue.Entry, bool, error) {
	insert := `
		INSERT INTO queue (id, establishment_id, customer_id, status, created_at)
		VALUES ($1, $2, $3, 'waiting', clock_timestamp())
		ON CONFLICT (establishment_id, customer_id) WHERE status IN ('waiting', 'called')
		DO NOTHING
		RETURNING id
	`

	for attempt := 0; attempt < insertAttempts; attempt++ {
		var id string
		err := r.db.QueryRow(ctx, insert, ulid.Make().String(), establishmentID, customerID).Scan(&id)
		switch {
		case err == nil:
			e, err := r.FindActive(ctx, establishmentID, customerID)
			if err != nil {
				return nil, false, err
			}
			return e, true, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, false, xerrors.NewStoreError("insert entry", err)
		}

		e, err := r.FindActive(ctx, establishmentID, customerID)
		if err == nil {
			return e, false, nil
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, false, err
		}
	}
	return nil, false, xerrors.NewStoreError("insert entry", fmt.Errorf("active entry churned %d times", insertAttempts))
}

// Transition is a single conditional UPDATE; RowsAffected tells whether it won.
func (r *QueueRepository) Transition(ctx context.Context, establishmentID, customerID string, from, to queue.Status) (bool, error) {
	if !queue.CanTransition(from, to) {
		return false, nil
	}

	var calledAt, completedAt *time.Time
	now := time.Now().UTC()
	switch to {
	case queue.StatusCalled:
		calledAt = &now
	case queue.StatusCompleted:
		completedAt = &now
	}

	query := `
		UPDATE queue
		SET status = $4,
		    called_at = COALESCE($5, called_at),
		    completed_at = COALESCE($6, completed_at)
		WHERE establishment_id = $1 AND customer_id = $2 AND status = $3
	`
	tag, err := r.db.Exec(ctx, query, establishmentID, customerID, from.String(), to.String(), calledAt, completedAt)
	if err != nil {
		return false, xerrors.NewStoreError("transition", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QueueRepository) FindActive(ctx context.Context, establishmentID, customerID string) (*queue.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM queue q
		JOIN customers c ON c.id = q.customer_id
		WHERE q.establishment_id = $1 AND q.customer_id = $2 AND q.status IN ('waiting', 'called')
	`

	e, err := scanEntry(r.db.QueryRow(ctx, query, establishmentID, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.NewStoreError("find active entry", err)
	}
	return e, nil
}

func (r *QueueRepository) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM queue WHERE status = 'completed' AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, xerrors.NewStoreError("purge completed", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.Row) (*queue.Entry, error) {
	var (
		e      queue.Entry
		status string
	)
	err := row.Scan(
		&e.ID, &e.EstablishmentID, &e.CustomerID, &status,
		&e.CreatedAt, &e.CalledAt, &e.CompletedAt,
		&e.Name, &e.Phone,
	)
	if err != nil {
		return nil, err
	}
	if e.Status, err = queue.ParseStatus(status); err != nil {
		return nil, err
	}
	return &e, nil
}
