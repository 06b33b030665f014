package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// TicketFilter captures ticket search parameters. A zero Limit returns every match.
type TicketFilter struct {
	InstallationID *int64
	ResponsibleID  *int64
	Statuses       []domain.TicketStatus
	FaultTypes     []domain.FaultType
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TicketRepository encapsulates maintenance ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.MaintenanceTicket) error
	Update(ctx context.Context, ticket *domain.MaintenanceTicket) error
	GetByID(ctx context.Context, id int64) (*domain.MaintenanceTicket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.MaintenanceTicket, error)
	AddEstimatedSolution(ctx context.Context, estimate *domain.EstimatedSolution) error
	Stats(ctx context.Context, now time.Time) (domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        m.id, COALESCE(m.folio, ''), m.installation_id, i.name, m.equipment_name, m.equipment_subarea,
        m.responsible_id, COALESCE(r.name, ''), COALESCE(u.email, ''), m.fault_type, m.description,
        m.actions_taken, m.status, m.real_solution, m.created_by_id, m.created_at, m.updated_at`

const ticketJoins = `
        FROM maintenance_requests m
        JOIN installations i ON i.id = m.installation_id
        LEFT JOIN responsibles r ON r.id = m.responsible_id
        LEFT JOIN users u ON u.id = r.user_id`

// Create inserts the ticket and assigns its folio from the installation code.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.MaintenanceTicket) error {
	const insert = `
        INSERT INTO maintenance_requests (installation_id, equipment_name, equipment_subarea, responsible_id,
            fault_type, description, actions_taken, status, created_by_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	const folio = `
        UPDATE maintenance_requests m SET folio = i.folio_code || '-' || m.id
        FROM installations i
        WHERE i.id = m.installation_id AND m.id = $1
        RETURNING m.folio`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, insert,
		ticket.InstallationID,
		ticket.EquipmentName,
		ticket.EquipmentSubarea,
		ticket.ResponsibleID,
		ticket.FaultType,
		ticket.Description,
		ticket.ActionsTaken,
		ticket.Status,
		ticket.CreatedByID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, folio, ticket.ID).Scan(&ticket.Folio); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.MaintenanceTicket) error {
	const query = `
        UPDATE maintenance_requests SET equipment_name=$1, equipment_subarea=$2, responsible_id=$3, fault_type=$4,
            description=$5, actions_taken=$6, status=$7, real_solution=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.EquipmentName,
		ticket.EquipmentSubarea,
		ticket.ResponsibleID,
		ticket.FaultType,
		ticket.Description,
		ticket.ActionsTaken,
		ticket.Status,
		ticket.RealSolution,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.MaintenanceTicket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` WHERE m.id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	if err := r.attachEstimates(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

// ListWithFilter returns matching tickets oldest first, each carrying its
// estimated solutions ordered most recently added first.
func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.MaintenanceTicket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.InstallationID != nil {
		args = append(args, *filter.InstallationID)
		clauses = append(clauses, fmt.Sprintf("m.installation_id=$%d", len(args)))
	}
	if filter.ResponsibleID != nil {
		args = append(args, *filter.ResponsibleID)
		clauses = append(clauses, fmt.Sprintf("m.responsible_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("m.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.FaultTypes) > 0 {
		placeholders := make([]string, len(filter.FaultTypes))
		for i, ft := range filter.FaultTypes {
			args = append(args, ft)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("m.fault_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("m.created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("m.created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(m.description) LIKE %s OR LOWER(m.equipment_name) LIKE %s OR LOWER(m.folio) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY m.created_at ASC, m.id ASC`,
		ticketColumns, ticketJoins, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachEstimates(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) AddEstimatedSolution(ctx context.Context, estimate *domain.EstimatedSolution) error {
	const query = `
        INSERT INTO estimated_solutions (maintenance_request_id, estimated_date, comment)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		estimate.TicketID,
		estimate.Date,
		estimate.Comment,
	).Scan(&estimate.ID, &estimate.CreatedAt)
}

func (r *ticketRepository) Stats(ctx context.Context, now time.Time) (domain.TicketStats, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE m.status = 'SOLICITADO'),
            COUNT(*) FILTER (WHERE m.status = 'EN_PROCESO'),
            COUNT(*) FILTER (WHERE m.status IN ('SOLICITADO','EN_PROCESO') AND EXISTS (
                SELECT 1 FROM estimated_solutions e
                WHERE e.maintenance_request_id = m.id AND e.estimated_date < $1)),
            COUNT(*) FILTER (WHERE m.status = 'COMPLETADO' AND m.real_solution >= $2)
        FROM maintenance_requests m`
	var stats domain.TicketStats
	err := r.pool.QueryRow(ctx, query, now, now.AddDate(0, 0, -30)).Scan(
		&stats.Requested,
		&stats.InProcess,
		&stats.Overdue,
		&stats.CompletedLast30Days,
	)
	return stats, err
}

func (r *ticketRepository) attachEstimates(ctx context.Context, tickets []domain.MaintenanceTicket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}

	const query = `
        SELECT id, maintenance_request_id, estimated_date, comment, created_at
        FROM estimated_solutions
        WHERE maintenance_request_id = ANY($1)
        ORDER BY maintenance_request_id, created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	var estimates []domain.EstimatedSolution
	for rows.Next() {
		var est domain.EstimatedSolution
		if err := rows.Scan(&est.ID, &est.TicketID, &est.Date, &est.Comment, &est.CreatedAt); err != nil {
			return err
		}
		estimates = append(estimates, est)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	assignEstimates(tickets, estimates)
	return nil
}

// assignEstimates attaches estimates to their tickets, newest first.
// Index 0 is the active target date, so ties on created_at fall back to id.
func assignEstimates(tickets []domain.MaintenanceTicket, estimates []domain.EstimatedSolution) {
	index := make(map[int64]int, len(tickets))
	for i, t := range tickets {
		index[t.ID] = i
	}
	for _, est := range estimates {
		i, ok := index[est.TicketID]
		if !ok {
			continue
		}
		tickets[i].EstimatedSolutions = append(tickets[i].EstimatedSolutions, est)
	}
	for i := range tickets {
		list := tickets[i].EstimatedSolutions
		sort.SliceStable(list, func(a, b int) bool {
			if !list[a].CreatedAt.Equal(list[b].CreatedAt) {
				return list[a].CreatedAt.After(list[b].CreatedAt)
			}
			return list[a].ID > list[b].ID
		})
	}
}

func scanTickets(rows pgx.Rows) ([]domain.MaintenanceTicket, error) {
	defer rows.Close()
	var result []domain.MaintenanceTicket
	for rows.Next() {
		var ticket domain.MaintenanceTicket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Folio,
			&ticket.InstallationID,
			&ticket.InstallationName,
			&ticket.EquipmentName,
			&ticket.EquipmentSubarea,
			&ticket.ResponsibleID,
			&ticket.ResponsibleName,
			&ticket.ResponsibleEmail,
			&ticket.FaultType,
			&ticket.Description,
			&ticket.ActionsTaken,
			&ticket.Status,
			&ticket.RealSolution,
			&ticket.CreatedByID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
