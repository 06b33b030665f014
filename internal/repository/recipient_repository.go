package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// RecipientQuery selects opted-in role assignments. Group is required; empty Roles
// or UserIDs do not filter.
type RecipientQuery struct {
	Group   domain.NotificationGroupID
	Roles   []domain.RoleID
	UserIDs []int64
}

// RecipientRepository resolves notification recipients from user role assignments.
type RecipientRepository interface {
	ListRecipients(ctx context.Context, q RecipientQuery) ([]domain.Recipient, error)
}

type recipientRepository struct {
	pool *pgxpool.Pool
}

// NewRecipientRepository builds the repository.
func NewRecipientRepository(pool *pgxpool.Pool) RecipientRepository {
	return &recipientRepository{pool: pool}
}

// ListRecipients returns one recipient per distinct email, ordered by email.
func (r *recipientRepository) ListRecipients(ctx context.Context, q RecipientQuery) ([]domain.Recipient, error) {
	args := []any{q.Group}
	clauses := []string{"ur.email_notifications = TRUE", "ur.notification_group_id = $1", "u.email <> ''"}

	if len(q.Roles) > 0 {
		placeholders := make([]string, len(q.Roles))
		for i, role := range q.Roles {
			args = append(args, role)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("ur.role_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(q.UserIDs) > 0 {
		args = append(args, q.UserIDs)
		clauses = append(clauses, fmt.Sprintf("u.id = ANY($%d)", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT DISTINCT ON (LOWER(u.email)) u.id, u.username, u.email, ur.role_id
        FROM user_roles ur JOIN users u ON u.id = ur.user_id
        WHERE %s
        ORDER BY LOWER(u.email), ur.role_id`, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		if err := rows.Scan(&rec.UserID, &rec.Name, &rec.Email, &rec.RoleID); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return uniqueRecipients(result), nil
}

// uniqueRecipients keeps the first row per mailbox, compared case-insensitively,
// and drops rows without an address.
func uniqueRecipients(list []domain.Recipient) []domain.Recipient {
	seen := make(map[string]struct{}, len(list))
	out := make([]domain.Recipient, 0, len(list))
	for _, rec := range list {
		key := strings.ToLower(strings.TrimSpace(rec.Email))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
