package domain

import (
	"time"

	"github.com/google/uuid"
)

type AllocationStatus string

const (
	AllocationActive  AllocationStatus = "active"
	AllocationVacated AllocationStatus = "vacated"
)

// Allocation binds one fulfilled Request to one occupied Unit. At most one
// allocation per unit and per request may be active at any time; rows are
// never deleted, release flips them to vacated.
type Allocation struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	UnitID      uuid.UUID
	Status      AllocationStatus
	AllocatedAt time.Time
	VacatedAt   *time.Time
}

// ProposedPair is a matcher proposal. It carries the snapshot the pair was
// computed from; preconditions are re-checked against live state at apply time.
type ProposedPair struct {
	Request Request
	Unit    Unit
}
