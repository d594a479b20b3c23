package reservation

import (
	"math"

	"github.com/example/reservation-engine/internal/timeperiod"
)

// Allocation binds a specific room or resource, with a possibly narrower time
// window, to one reservation. Allocations are owned exclusively by their
// reservation and are copied, never shared, when a reservation is duplicated.
type Allocation struct {
	ID         string
	Kind       Kind
	BuildingID string
	FloorID    string

	// Room variant.
	RoomID string

	// Resource variant.
	ResourceID string
	Quantity   int

	Period   timeperiod.TimePeriod
	Status   Status
	UnitCost float64
}

// TargetID returns the booked room or resource identifier.
func (a Allocation) TargetID() string {
	if a.Kind == KindResource {
		return a.ResourceID
	}
	return a.RoomID
}

// Cost returns the charge for this allocation, rounded to two decimal
// places. Resource allocations multiply by quantity.
func (a Allocation) Cost() float64 {
	cost := a.UnitCost
	if a.Kind == KindResource && a.Quantity > 0 {
		cost = a.UnitCost * float64(a.Quantity)
	}
	return math.Round(cost*100) / 100
}

// Clone returns an independent copy of the allocation.
func (a Allocation) Clone() Allocation {
	clone := a
	clone.Period = a.Period.Clone()
	return clone
}
