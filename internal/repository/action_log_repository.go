package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// ActionLogRepository manages ticket comments.
type ActionLogRepository interface {
	Create(ctx context.Context, entry *domain.ActionLogEntry) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActionLogEntry, error)
}

type actionLogRepository struct {
	pool *pgxpool.Pool
}

// NewActionLogRepository builds repository.
func NewActionLogRepository(pool *pgxpool.Pool) ActionLogRepository {
	return &actionLogRepository{pool: pool}
}

func (r *actionLogRepository) Create(ctx context.Context, entry *domain.ActionLogEntry) error {
	const query = `
        INSERT INTO action_logs (maintenance_request_id, author_id, comment)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.AuthorID,
		entry.Comment,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *actionLogRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActionLogEntry, error) {
	const query = `
        SELECT id, maintenance_request_id, author_id, comment, created_at
        FROM action_logs WHERE maintenance_request_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActionLogEntry
	for rows.Next() {
		var entry domain.ActionLogEntry
		if err := rows.Scan(&entry.ID, &entry.TicketID, &entry.AuthorID, &entry.Comment, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
