package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/valtrion/allocd/internal/core/domain"
)

type UnitRepository struct {
	db *sql.DB
}

func NewUnitRepository(db *sql.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) GetByID(ctx context.Context, unitID uuid.UUID) (*domain.Unit, error) {
	query := `
	SELECT id, unit_type, status, version, created_at
	FROM units
	WHERE id = $1
	`

	var unit domain.Unit
	err := r.db.QueryRowContext(ctx, query, unitID).Scan(
		&unit.ID,
		&unit.Type,
		&unit.Status,
		&unit.Version,
		&unit.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUnitNotFound
		}
		return nil, fmt.Errorf("get unit: %w", err)
	}

	return &unit, nil
}

func (r *UnitRepository) ListByStatus(ctx context.Context, status domain.UnitStatus) ([]domain.Unit, error) {
	query := `
	SELECT id, unit_type, status, version, created_at
	FROM units
	WHERE status = $1
	ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list units by status: %w", err)
	}

	defer rows.Close()

	var units []domain.Unit
	for rows.Next() {
		var unit domain.Unit
		if err := rows.Scan(
			&unit.ID,
			&unit.Type,
			&unit.Status,
			&unit.Version,
			&unit.CreatedAt,
		); err != nil {
			return nil, err
		}

		units = append(units, unit)
	}

	return units, rows.Err()
}

func (r *UnitRepository) Create(ctx context.Context, unit *domain.Unit) error {
	query := `
	INSERT INTO units (id, unit_type, status, version, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, unit.ID, unit.Type, unit.Status, unit.Version, unit.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}

	return nil
}

func (r *UnitRepository) CountByStatus(ctx context.Context) (map[domain.UnitStatus]int, error) {
	query := `
	SELECT status, COUNT(*)
	FROM units
	GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count units by status: %w", err)
	}

	defer rows.Close()

	counts := make(map[domain.UnitStatus]int)
	for rows.Next() {
		var status domain.UnitStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func (r *UnitRepository) OccupancyByType(ctx context.Context) ([]domain.TypeOccupancy, error) {
	query := `
	SELECT unit_type,
	       COUNT(*),
	       COUNT(*) FILTER (WHERE status = 'occupied')
	FROM units
	GROUP BY unit_type
	ORDER BY unit_type
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("occupancy by type: %w", err)
	}

	defer rows.Close()

	var result []domain.TypeOccupancy
	for rows.Next() {
		var row domain.TypeOccupancy
		if err := rows.Scan(&row.Type, &row.Total, &row.Occupied); err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
