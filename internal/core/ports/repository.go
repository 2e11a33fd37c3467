package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valtrion/allocd/internal/core/domain"
)

type UnitRepository interface {
	GetByID(ctx context.Context, unitID uuid.UUID) (*domain.Unit, error)
	ListByStatus(ctx context.Context, status domain.UnitStatus) ([]domain.Unit, error)
	Create(ctx context.Context, unit *domain.Unit) error
	CountByStatus(ctx context.Context) (map[domain.UnitStatus]int, error)
	OccupancyByType(ctx context.Context) ([]domain.TypeOccupancy, error)
}

type RequestRepository interface {
	GetByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error)
	ListPending(ctx context.Context) ([]domain.Request, error)
	Create(ctx context.Context, request *domain.Request) error
	CountPending(ctx context.Context) (int, error)
}

// AllocationRepository owns the transactional write path. Apply and Release
// each perform their multi-row effects inside a single database transaction,
// re-validating status preconditions with compare-and-swap updates.
type AllocationRepository interface {
	GetByID(ctx context.Context, allocationID uuid.UUID) (*domain.Allocation, error)
	// Apply transitions unit to occupied and request to fulfilled, inserts an
	// active allocation and its audit event. Returns domain.ErrConflict when
	// either precondition no longer holds.
	Apply(ctx context.Context, pair domain.ProposedPair, actorID string, now time.Time) (*domain.Allocation, error)
	// Release transitions an active allocation to vacated, returns the unit to
	// vacant and appends the audit event. Returns domain.ErrAlreadyReleased on
	// a second attempt.
	Release(ctx context.Context, allocationID uuid.UUID, actorID string, now time.Time) (*domain.Allocation, error)
}

type AuditRepository interface {
	Query(ctx context.Context, filter AuditFilter) ([]domain.AuditEvent, error)
}

// AuditFilter selects audit events ascending by id. AfterID is a keyset
// cursor over that same id order: only events with a larger id are returned,
// so a caller can restart pagination from the last event it saw.
type AuditFilter struct {
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
	AfterID    int64
	Limit      int
}
