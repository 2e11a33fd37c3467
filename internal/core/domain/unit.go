package domain

import (
	"time"

	"github.com/google/uuid"
)

type UnitStatus string

const (
	UnitVacant      UnitStatus = "vacant"
	UnitOccupied    UnitStatus = "occupied"
	UnitBlocked     UnitStatus = "blocked"
	UnitMaintenance UnitStatus = "maintenance"
)

// Unit is a discrete allocatable resource (a bed, a seat, a parking slot).
// Status is mutated only through the allocation write path.
type Unit struct {
	ID        uuid.UUID
	Type      string
	Status    UnitStatus
	Version   int
	CreatedAt time.Time
}

func (u *Unit) IsVacant() bool {
	return u.Status == UnitVacant
}
