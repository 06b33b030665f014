package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// NotificationFilter pages through generated notifications.
type NotificationFilter struct {
	Groups   []domain.NotificationGroupID
	TicketID *int64
	Limit    int
	Offset   int
}

// NotificationRepository stores generated in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.GeneratedNotification) error
	List(ctx context.Context, filter NotificationFilter) ([]domain.GeneratedNotification, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.GeneratedNotification) error {
	const query = `
        INSERT INTO generated_notifications (maintenance_request_id, type, title, message, notification_group_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.TicketID,
		n.Type,
		n.Title,
		n.Message,
		n.NotificationGroupID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]domain.GeneratedNotification, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Groups) > 0 {
		placeholders := make([]string, len(filter.Groups))
		for i, g := range filter.Groups {
			args = append(args, g)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("notification_group_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("maintenance_request_id=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        SELECT id, COALESCE(maintenance_request_id, 0), type, title, message, notification_group_id, created_at
        FROM generated_notifications WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GeneratedNotification
	for rows.Next() {
		var n domain.GeneratedNotification
		if err := rows.Scan(&n.ID, &n.TicketID, &n.Type, &n.Title, &n.Message, &n.NotificationGroupID, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
