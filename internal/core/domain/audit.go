package domain

import "time"

const (
	AuditActionAllocate = "allocate"
	AuditActionVacate   = "vacate"

	AuditEntityAllocation = "allocation"
)

// ActorSystem is recorded when a state change was triggered by the engine
// itself (scheduled sweep) rather than an operator.
const ActorSystem = "system"

// AuditEvent is an append-only record of one state-changing action. Events are
// written in the same transaction as the state change they describe and are
// never mutated afterwards.
type AuditEvent struct {
	ID         int64
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	Timestamp  time.Time
	Notes      string
}
