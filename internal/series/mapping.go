package series

import (
	"github.com/example/reservation-engine/internal/persistence"
	"github.com/example/reservation-engine/internal/reservation"
	"github.com/example/reservation-engine/internal/timeperiod"
)

func toStored(r reservation.Reservation) persistence.Reservation {
	stored := persistence.Reservation{
		ID:            r.ID,
		Kind:          string(r.Kind),
		OwnerID:       r.OwnerID,
		Title:         r.Title,
		ParentID:      r.ParentID,
		CorrelationID: r.CorrelationID,
		RuleText:      r.RuleText,
		StartDate:     r.Period.StartDate,
		EndDate:       r.Period.EndDate,
		StartTime:     r.Period.StartTime,
		EndTime:       r.Period.EndTime,
		TimezoneID:    r.Period.TimezoneID,
		Status:        string(r.Status),
		Cost:          r.Cost,
		Attendees:     append([]string(nil), r.Attendees...),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, a := range r.Allocations {
		stored.Allocations = append(stored.Allocations, persistence.Allocation{
			ID:            a.ID,
			ReservationID: r.ID,
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

func fromStored(stored persistence.Reservation) reservation.Reservation {
	r := reservation.Reservation{
		ID:            stored.ID,
		Kind:          reservation.Kind(stored.Kind),
		OwnerID:       stored.OwnerID,
		Title:         stored.Title,
		ParentID:      stored.ParentID,
		CorrelationID: stored.CorrelationID,
		RuleText:      stored.RuleText,
		Period: timeperiod.TimePeriod{
			StartDate:  stored.StartDate,
			EndDate:    stored.EndDate,
			StartTime:  stored.StartTime,
			EndTime:    stored.EndTime,
			TimezoneID: stored.TimezoneID,
		},
		Status:    reservation.Status(stored.Status),
		Cost:      stored.Cost,
		Attendees: append([]string(nil), stored.Attendees...),
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
	for _, a := range stored.Allocations {
		r.Allocations = append(r.Allocations, reservation.Allocation{
			ID:         a.ID,
			Kind:       reservation.Kind(a.Kind),
			BuildingID: a.BuildingID,
			FloorID:    a.FloorID,
			RoomID:     a.RoomID,
			ResourceID: a.ResourceID,
			Quantity:   a.Quantity,
			Period: timeperiod.TimePeriod{
				StartDate:  a.StartDate,
				EndDate:    a.EndDate,
				StartTime:  a.StartTime,
				EndTime:    a.EndTime,
				TimezoneID: a.TimezoneID,
			},
			Status:   reservation.Status(a.Status),
			UnitCost: a.UnitCost,
		})
	}
	return r
}

func fromStoredAll(stored []persistence.Reservation) []reservation.Reservation {
	out := make([]reservation.Reservation, 0, len(stored))
	for _, s := range stored {
		out = append(out, fromStored(s))
	}
	return out
}
