package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// ResponsibleRepository reads responsible parties joined with their account email.
type ResponsibleRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.ResponsibleParty, error)
	List(ctx context.Context) ([]domain.ResponsibleParty, error)
}

type responsibleRepository struct {
	pool *pgxpool.Pool
}

// NewResponsibleRepository instantiates the repository.
func NewResponsibleRepository(pool *pgxpool.Pool) ResponsibleRepository {
	return &responsibleRepository{pool: pool}
}

const responsibleSelect = `
        SELECT r.id, r.name, r.user_id, COALESCE(u.email, '')
        FROM responsibles r LEFT JOIN users u ON u.id = r.user_id`

func (r *responsibleRepository) GetByID(ctx context.Context, id int64) (*domain.ResponsibleParty, error) {
	var party domain.ResponsibleParty
	if err := r.pool.QueryRow(ctx, responsibleSelect+` WHERE r.id=$1`, id).Scan(
		&party.ID,
		&party.Name,
		&party.UserID,
		&party.Email,
	); err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *responsibleRepository) List(ctx context.Context) ([]domain.ResponsibleParty, error) {
	rows, err := r.pool.Query(ctx, responsibleSelect+` ORDER BY r.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ResponsibleParty
	for rows.Next() {
		var party domain.ResponsibleParty
		if err := rows.Scan(&party.ID, &party.Name, &party.UserID, &party.Email); err != nil {
			return nil, err
		}
		result = append(result, party)
	}
	return result, rows.Err()
}
