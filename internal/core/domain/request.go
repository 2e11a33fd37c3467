package domain

import (
	"time"

	"github.com/google/uuid"
)

// Request is a pending claim on the inventory (a waitlist entry).
// Lower PriorityRank means higher priority; ties are broken by AppliedAt.
type Request struct {
	ID           uuid.UUID
	RequesterID  uuid.UUID
	PriorityRank int
	// PreferredType filters eligible units by Unit.Type. Empty means any type.
	PreferredType string
	AppliedAt     time.Time
	Fulfilled     bool
	Version       int
}

// Accepts reports whether the request is willing to take a unit of the given type.
func (r *Request) Accepts(unitType string) bool {
	return r.PreferredType == "" || r.PreferredType == unitType
}
