package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/reservation-engine/internal/persistence"
	"github.com/example/reservation-engine/internal/reservation"
	"github.com/example/reservation-engine/internal/timeperiod"
)

var reservationCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReservationFixture is a deterministic reservation record that can be
// materialised as a domain aggregate or a stored row.
type ReservationFixture struct {
	ID         string
	Kind       reservation.Kind
	OwnerID    string
	Title      string
	ParentID   string
	Date       time.Time
	StartClock time.Time
	EndClock   time.Time
	TimezoneID string
	Status     reservation.Status
	BuildingID string
	RoomID     string
	UnitCost   float64
	Attendees  []string
}

// ReservationOption configures the generated fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic single-day room reservation
// with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		ID:         fmt.Sprintf("res-%03d", idx),
		Kind:       reservation.KindRoom,
		OwnerID:    "user-1",
		Title:      fmt.Sprintf("Reservation %03d", idx),
		Date:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		StartClock: time.Date(timeperiod.SentinelYear, time.January, 1, 9, 0, 0, 0, time.UTC),
		EndClock:   time.Date(timeperiod.SentinelYear, time.January, 1, 10, 0, 0, 0, time.UTC),
		TimezoneID: "UTC",
		Status:     reservation.StatusConfirmed,
		BuildingID: "bld-1",
		RoomID:     "room-1",
		UnitCost:   10,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated id.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ID = id }
}

// WithOwner sets the owning user id.
func WithOwner(ownerID string) ReservationOption {
	return func(f *ReservationFixture) { f.OwnerID = ownerID }
}

// WithParent links the fixture into a series.
func WithParent(parentID string) ReservationOption {
	return func(f *ReservationFixture) { f.ParentID = parentID }
}

// WithDate moves the occurrence onto the given calendar day.
func WithDate(date time.Time) ReservationOption {
	return func(f *ReservationFixture) { f.Date = timeperiod.DateOnly(date) }
}

// WithClocks sets the start and end time of day.
func WithClocks(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.StartClock = timeperiod.TimeOnly(start)
		f.EndClock = timeperiod.TimeOnly(end)
	}
}

// WithStatus overrides the reservation status.
func WithStatus(status reservation.Status) ReservationOption {
	return func(f *ReservationFixture) { f.Status = status }
}

// WithRoom books a specific room in a building.
func WithRoom(buildingID, roomID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.BuildingID = buildingID
		f.RoomID = roomID
	}
}

// WithAttendees sets the attendee list.
func WithAttendees(attendees ...string) ReservationOption {
	return func(f *ReservationFixture) { f.Attendees = append([]string(nil), attendees...) }
}

// Domain returns the fixture as a reservation aggregate with one room
// allocation spanning the reservation window.
func (f ReservationFixture) Domain() reservation.Reservation {
	period := timeperiod.TimePeriod{
		StartDate:  f.Date,
		EndDate:    f.Date,
		StartTime:  f.StartClock,
		EndTime:    f.EndClock,
		TimezoneID: f.TimezoneID,
	}
	r := reservation.Reservation{
		ID:        f.ID,
		Kind:      f.Kind,
		OwnerID:   f.OwnerID,
		Title:     f.Title,
		ParentID:  f.ParentID,
		Period:    period,
		Status:    f.Status,
		Attendees: append([]string(nil), f.Attendees...),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	r.AddAllocation(reservation.Allocation{
		ID:         f.ID + "-alloc",
		Kind:       f.Kind,
		BuildingID: f.BuildingID,
		RoomID:     f.RoomID,
		Period:     period.Clone(),
		Status:     f.Status,
		UnitCost:   f.UnitCost,
	})
	return r
}

// Stored returns the fixture as a persistence row.
func (f ReservationFixture) Stored() persistence.Reservation {
	domain := f.Domain()
	stored := persistence.Reservation{
		ID:            domain.ID,
		Kind:          string(domain.Kind),
		OwnerID:       domain.OwnerID,
		Title:         domain.Title,
		ParentID:      domain.ParentID,
		CorrelationID: domain.CorrelationID,
		RuleText:      domain.RuleText,
		StartDate:     domain.Period.StartDate,
		EndDate:       domain.Period.EndDate,
		StartTime:     domain.Period.StartTime,
		EndTime:       domain.Period.EndTime,
		TimezoneID:    domain.Period.TimezoneID,
		Status:        string(domain.Status),
		Cost:          domain.Cost,
		Attendees:     append([]string(nil), domain.Attendees...),
		CreatedAt:     domain.CreatedAt,
		UpdatedAt:     domain.UpdatedAt,
	}
	for _, a := range domain.Allocations {
		stored.Allocations = append(stored.Allocations, persistence.Allocation{
			ID:            a.ID,
			ReservationID: domain.ID,
			Kind:          string(a.Kind),
			BuildingID:    a.BuildingID,
			FloorID:       a.FloorID,
			RoomID:        a.RoomID,
			ResourceID:    a.ResourceID,
			Quantity:      a.Quantity,
			StartDate:     a.Period.StartDate,
			EndDate:       a.Period.EndDate,
			StartTime:     a.Period.StartTime,
			EndTime:       a.Period.EndTime,
			TimezoneID:    a.Period.TimezoneID,
			Status:        string(a.Status),
			UnitCost:      a.UnitCost,
		})
	}
	return stored
}
