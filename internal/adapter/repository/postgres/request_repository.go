package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/valtrion/allocd/internal/core/domain"
)

type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error) {
	query := `
	SELECT id, requester_id, priority_rank, preferred_type, applied_at, fulfilled, version
	FROM requests
	WHERE id = $1
	`

	var request domain.Request
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&request.ID,
		&request.RequesterID,
		&request.PriorityRank,
		&request.PreferredType,
		&request.AppliedAt,
		&request.Fulfilled,
		&request.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}

	return &request, nil
}

// ListPending returns unfulfilled requests in matcher order: priority rank
// ascending, ties by application time.
func (r *RequestRepository) ListPending(ctx context.Context) ([]domain.Request, error) {
	query := `
	SELECT id, requester_id, priority_rank, preferred_type, applied_at, fulfilled, version
	FROM requests
	WHERE fulfilled = FALSE
	ORDER BY priority_rank, applied_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		var request domain.Request
		if err := rows.Scan(
			&request.ID,
			&request.RequesterID,
			&request.PriorityRank,
			&request.PreferredType,
			&request.AppliedAt,
			&request.Fulfilled,
			&request.Version,
		); err != nil {
			return nil, err
		}

		requests = append(requests, request)
	}

	return requests, rows.Err()
}

func (r *RequestRepository) Create(ctx context.Context, request *domain.Request) error {
	query := `
	INSERT INTO requests (id, requester_id, priority_rank, preferred_type, applied_at, fulfilled, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.RequesterID,
		request.PriorityRank,
		request.PreferredType,
		request.AppliedAt,
		request.Fulfilled,
		request.Version,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	return nil
}

func (r *RequestRepository) CountPending(ctx context.Context) (int, error) {
	query := `
	SELECT COUNT(*) FROM requests WHERE fulfilled = FALSE
	`

	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}

	return n, nil
}
