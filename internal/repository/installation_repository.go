package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// InstallationRepository manages installation persistence.
type InstallationRepository interface {
	Create(ctx context.Context, inst *domain.Installation) error
	GetByID(ctx context.Context, id int64) (*domain.Installation, error)
	List(ctx context.Context) ([]domain.Installation, error)
}

type installationRepository struct {
	pool *pgxpool.Pool
}

// NewInstallationRepository builds the repository.
func NewInstallationRepository(pool *pgxpool.Pool) InstallationRepository {
	return &installationRepository{pool: pool}
}

func (r *installationRepository) Create(ctx context.Context, inst *domain.Installation) error {
	const query = `
        INSERT INTO installations (name, folio_code)
        VALUES ($1,$2)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, inst.Name, inst.FolioCode).Scan(&inst.ID, &inst.CreatedAt)
}

func (r *installationRepository) GetByID(ctx context.Context, id int64) (*domain.Installation, error) {
	const query = `SELECT id, name, folio_code, created_at FROM installations WHERE id=$1`
	var inst domain.Installation
	if err := r.pool.QueryRow(ctx, query, id).Scan(&inst.ID, &inst.Name, &inst.FolioCode, &inst.CreatedAt); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *installationRepository) List(ctx context.Context) ([]domain.Installation, error) {
	const query = `SELECT id, name, folio_code, created_at FROM installations ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Installation
	for rows.Next() {
		var inst domain.Installation
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.FolioCode, &inst.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}
