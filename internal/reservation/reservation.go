package reservation

import (
	"fmt"
	"math"
	"time"

	"github.com/example/reservation-engine/internal/timeperiod"
)

// Kind distinguishes the two reservation variants. Shared behavior lives on
// the composed value structs rather than a type hierarchy.
type Kind string

const (
	KindRoom     Kind = "room"
	KindResource Kind = "resource"
)

// Status tracks the approval lifecycle of a reservation. Cancellation flips
// status rather than removing the record.
type Status string

const (
	StatusNone             Status = ""
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusConfirmed        Status = "confirmed"
	StatusRejected         Status = "rejected"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Reservation is one occurrence record of a room or resource booking. Every
// occurrence of a series is a distinct record sharing the anchor's ParentID;
// the anchor itself carries its own id as ParentID once the series is saved.
type Reservation struct {
	ID            string
	Kind          Kind
	OwnerID       string
	Title         string
	ParentID      string
	CorrelationID string
	RuleText      string
	Period        timeperiod.TimePeriod
	Status        Status
	Cost          float64
	Allocations   []Allocation
	Attendees     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAnchor reports whether this record is its own series anchor. An empty
// ParentID means the record was never linked into a series.
func (r *Reservation) IsAnchor() bool {
	return r.ParentID != "" && r.ParentID == r.ID
}

// InSeries reports whether the reservation belongs to a recurring series.
func (r *Reservation) InSeries() bool {
	return r.ParentID != ""
}

// Validate checks the aggregate invariants. Occurrence windows must be a
// single day; only a persisted series anchor may span the full series range.
func (r *Reservation) Validate() error {
	if err := r.Period.Validate(); err != nil {
		return err
	}
	if r.InSeries() && !r.IsAnchor() && !r.Period.StartDate.Equal(r.Period.EndDate) {
		return fmt.Errorf("reservation: occurrence %s spans multiple days", r.ID)
	}
	return nil
}

// AddAllocation attaches an allocation after clipping its window into the
// reservation's own window. Resources may book a narrower window nested
// inside the room booking but never extend past it:
//   - a window fully outside the reservation snaps to the reservation's
//     start and end;
//   - a partially overlapping window keeps its own bounds where they fall
//     inside and is clamped where they do not.
func (r *Reservation) AddAllocation(a Allocation) {
	if !a.Period.Overlaps(r.Period) {
		a.Period.SetDates(r.Period.StartDate, r.Period.EndDate)
		a.Period.SetTimes(r.Period.StartTime, r.Period.EndTime)
	} else {
		if a.Period.Start().Before(r.Period.Start()) {
			a.Period.StartDate = r.Period.StartDate
			a.Period.StartTime = r.Period.StartTime
		}
		if a.Period.End().After(r.Period.End()) {
			a.Period.EndDate = r.Period.EndDate
			a.Period.EndTime = r.Period.EndTime
		}
	}
	if a.Status == StatusNone {
		a.Status = r.Status
	}
	r.Allocations = append(r.Allocations, a)
	r.CalculateTotalCost()
}

// CalculateTotalCost sums the allocation costs, rounds to two decimal places
// and caches the result on the aggregate. It runs again whenever allocations
// change; the cached value is never trusted across mutations.
func (r *Reservation) CalculateTotalCost() float64 {
	total := 0.0
	for _, a := range r.Allocations {
		total += a.Cost()
	}
	r.Cost = math.Round(total*100) / 100
	return r.Cost
}

// CopyTo performs the selective field copy used when cloning an occurrence
// onto a new date and when snapshotting an occurrence before an in-place
// edit. Identity fields (ID, timestamps) are never copied. Dates move only
// when allowDateChange is set; time-of-day always copies. Status copies only
// when the target has none yet - an existing status is never overwritten.
func (r *Reservation) CopyTo(target *Reservation, allowDateChange bool) {
	target.Kind = r.Kind
	target.OwnerID = r.OwnerID
	target.Title = r.Title
	target.ParentID = r.ParentID
	target.CorrelationID = r.CorrelationID
	target.RuleText = r.RuleText

	if allowDateChange {
		target.Period.SetDates(r.Period.StartDate, r.Period.EndDate)
	}
	target.Period.SetTimes(r.Period.StartTime, r.Period.EndTime)
	target.Period.TimezoneID = r.Period.TimezoneID

	if target.Status == StatusNone {
		target.Status = r.Status
	}

	target.Attendees = append([]string(nil), r.Attendees...)

	target.Allocations = make([]Allocation, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		clone := a.Clone()
		if !allowDateChange {
			clone.Period.SetDates(target.Period.StartDate, target.Period.EndDate)
		}
		target.Allocations = append(target.Allocations, clone)
	}
	target.CalculateTotalCost()
}

// CloneForDate builds a fresh occurrence of this reservation re-pointed at a
// single day. Allocations copy with their windows moved onto the new date;
// the clone has no id yet.
func (r *Reservation) CloneForDate(date time.Time) Reservation {
	clone := Reservation{Status: r.Status}
	r.CopyTo(&clone, false)
	clone.Period.Retarget(date)
	for i := range clone.Allocations {
		clone.Allocations[i].Period.Retarget(date)
	}
	return clone
}

// PrimaryBuildingID returns the building of the first allocation, or empty
// when the reservation is still a time-only draft.
func (r *Reservation) PrimaryBuildingID() string {
	if len(r.Allocations) == 0 {
		return ""
	}
	return r.Allocations[0].BuildingID
}
