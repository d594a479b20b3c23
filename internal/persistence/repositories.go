package persistence

import "context"

// ReservationRepository stores reservation occurrences and their allocations.
// The engine relies on Save/Update plus the two range queries that resolve a
// series: by the anchor's parent id and by the external correlation id.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	SaveReservation(ctx context.Context, reservation Reservation) error
	UpdateReservation(ctx context.Context, reservation Reservation) error
	ListByParentID(ctx context.Context, parentID string) ([]Reservation, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]Reservation, error)
	ListOverlapping(ctx context.Context, filter OverlapFilter) ([]Reservation, error)
}

// OverlapFilter narrows the active-reservation scan used for conflict checks.
// Date is the calendar day in time.DateOnly format.
type OverlapFilter struct {
	Kind      string
	Date      string
	Statuses  []string
	ExceptIDs []string
}

// BuildingRepository resolves building catalog entries.
type BuildingRepository interface {
	GetBuilding(ctx context.Context, id string) (Building, error)
}

// ResourceRepository lists bookable rooms and resources.
type ResourceRepository interface {
	ListResources(ctx context.Context, kind string) ([]Resource, error)
}
