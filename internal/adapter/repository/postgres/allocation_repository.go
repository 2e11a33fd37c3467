package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valtrion/allocd/internal/core/domain"
)

type AllocationRepository struct {
	db *sql.DB
}

func NewAllocationRepository(db *sql.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) GetByID(ctx context.Context, allocationID uuid.UUID) (*domain.Allocation, error) {
	query := `
	SELECT id, request_id, unit_id, status, allocated_at, vacated_at
	FROM allocations
	WHERE id = $1
	`

	alloc, err := scanAllocation(r.db.QueryRowContext(ctx, query, allocationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAllocationNotFound
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}

	return alloc, nil
}

// Apply performs the four-effect allocation write as one transaction. The
// matcher snapshot is not trusted: both status transitions are guarded
// compare-and-swap updates, and zero affected rows means another writer got
// there first, so the whole transaction rolls back with domain.ErrConflict.
func (r *AllocationRepository) Apply(ctx context.Context, pair domain.ProposedPair, actorID string, now time.Time) (*domain.Allocation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply tx: %w", err)
	}

	defer tx.Rollback()

	occupyUnit := `
	UPDATE units
	SET status = 'occupied', version = version + 1
	WHERE id = $1 AND status = 'vacant'
	`

	result, err := tx.ExecContext(ctx, occupyUnit, pair.Unit.ID)
	if err != nil {
		return nil, fmt.Errorf("occupy unit: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, domain.ErrConflict
	}

	fulfillRequest := `
	UPDATE requests
	SET fulfilled = TRUE, version = version + 1
	WHERE id = $1 AND fulfilled = FALSE
	`

	result, err = tx.ExecContext(ctx, fulfillRequest, pair.Request.ID)
	if err != nil {
		return nil, fmt.Errorf("fulfill request: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, domain.ErrConflict
	}

	alloc := &domain.Allocation{
		ID:          uuid.New(),
		RequestID:   pair.Request.ID,
		UnitID:      pair.Unit.ID,
		Status:      domain.AllocationActive,
		AllocatedAt: now,
	}

	insertAllocation := `
	INSERT INTO allocations (id, request_id, unit_id, status, allocated_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := tx.ExecContext(ctx, insertAllocation, alloc.ID, alloc.RequestID, alloc.UnitID, alloc.Status, alloc.AllocatedAt); err != nil {
		return nil, fmt.Errorf("insert allocation: %w", err)
	}

	if err := insertAuditEvent(ctx, tx, domain.AuditEvent{
		EntityType: domain.AuditEntityAllocation,
		EntityID:   alloc.ID.String(),
		Action:     domain.AuditActionAllocate,
		ActorID:    actorID,
		Timestamp:  now,
		Notes:      pair.Unit.ID.String(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit apply tx: %w", err)
	}

	return alloc, nil
}

// Release vacates an active allocation as one transaction. The allocation row
// is locked first, so a concurrent release observes the vacated status and
// fails with domain.ErrAlreadyReleased instead of double-writing.
func (r *AllocationRepository) Release(ctx context.Context, allocationID uuid.UUID, actorID string, now time.Time) (*domain.Allocation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release tx: %w", err)
	}

	defer tx.Rollback()

	lockAllocation := `
	SELECT id, request_id, unit_id, status, allocated_at, vacated_at
	FROM allocations
	WHERE id = $1
	FOR UPDATE
	`

	alloc, err := scanAllocation(tx.QueryRowContext(ctx, lockAllocation, allocationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAllocationNotFound
		}
		return nil, fmt.Errorf("lock allocation: %w", err)
	}

	if alloc.Status != domain.AllocationActive {
		return nil, domain.ErrAlreadyReleased
	}

	vacateAllocation := `
	UPDATE allocations
	SET status = 'vacated', vacated_at = $2
	WHERE id = $1
	`

	if _, err := tx.ExecContext(ctx, vacateAllocation, alloc.ID, now); err != nil {
		return nil, fmt.Errorf("vacate allocation: %w", err)
	}

	freeUnit := `
	UPDATE units
	SET status = 'vacant', version = version + 1
	WHERE id = $1 AND status = 'occupied'
	`

	result, err := tx.ExecContext(ctx, freeUnit, alloc.UnitID)
	if err != nil {
		return nil, fmt.Errorf("free unit: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		// An active allocation always references an occupied unit.
		return nil, fmt.Errorf("free unit %s: unit was not occupied", alloc.UnitID)
	}

	if err := insertAuditEvent(ctx, tx, domain.AuditEvent{
		EntityType: domain.AuditEntityAllocation,
		EntityID:   alloc.ID.String(),
		Action:     domain.AuditActionVacate,
		ActorID:    actorID,
		Timestamp:  now,
		Notes:      alloc.UnitID.String(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release tx: %w", err)
	}

	alloc.Status = domain.AllocationVacated
	alloc.VacatedAt = &now
	return alloc, nil
}

func insertAuditEvent(ctx context.Context, tx *sql.Tx, event domain.AuditEvent) error {
	query := `
	INSERT INTO audit_events (entity_type, entity_id, action, actor_id, occurred_at, notes)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.ExecContext(ctx, query,
		event.EntityType,
		event.EntityID,
		event.Action,
		event.ActorID,
		event.Timestamp,
		event.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

func scanAllocation(row *sql.Row) (*domain.Allocation, error) {
	var alloc domain.Allocation
	var vacatedAt sql.NullTime

	err := row.Scan(
		&alloc.ID,
		&alloc.RequestID,
		&alloc.UnitID,
		&alloc.Status,
		&alloc.AllocatedAt,
		&vacatedAt,
	)
	if err != nil {
		return nil, err
	}

	if vacatedAt.Valid {
		alloc.VacatedAt = &vacatedAt.Time
	}

	return &alloc, nil
}
