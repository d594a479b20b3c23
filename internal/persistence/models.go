package persistence

import "time"

// Reservation is the stored shape of one reservation occurrence (or series
// anchor). Date and time axes persist separately so the sentinel-anchored
// time-of-day semantics survive round trips.
type Reservation struct {
	ID            string
	Kind          string
	OwnerID       string
	Title         string
	ParentID      string
	CorrelationID string
	RuleText      string
	StartDate     time.Time
	EndDate       time.Time
	StartTime     time.Time
	EndTime       time.Time
	TimezoneID    string
	Status        string
	Cost          float64
	Attendees     []string
	Allocations   []Allocation
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Allocation is the stored binding of a room or resource to a reservation.
type Allocation struct {
	ID            string
	ReservationID string
	Kind          string
	BuildingID    string
	FloorID       string
	RoomID        string
	ResourceID    string
	Quantity      int
	StartDate     time.Time
	EndDate       time.Time
	StartTime     time.Time
	EndTime       time.Time
	TimezoneID    string
	Status        string
	UnitCost      float64
}

// Building is a catalog entry carrying the timezone every conflict comparison
// for that building is anchored to.
type Building struct {
	ID         string
	Name       string
	TimezoneID string
}

// Resource is a bookable room or equipment catalog entry.
type Resource struct {
	ID         string
	Kind       string
	BuildingID string
	FloorID    string
	Name       string
	Capacity   int
	UnitCost   float64
}
