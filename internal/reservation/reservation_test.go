package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reservation-engine/internal/timeperiod"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func clock(h, m int) time.Time {
	return time.Date(timeperiod.SentinelYear, 1, 1, h, m, 0, 0, time.UTC)
}

func period(t *testing.T, d int, startHour, endHour int) timeperiod.TimePeriod {
	t.Helper()
	p, err := timeperiod.New(day(d), day(d), clock(startHour, 0), clock(endHour, 0), "UTC")
	require.NoError(t, err)
	return p
}

func roomReservation(t *testing.T) Reservation {
	t.Helper()
	return Reservation{
		ID:      "res-1",
		Kind:    KindRoom,
		OwnerID: "user-1",
		Title:   "standup",
		Period:  period(t, 4, 9, 12),
		Status:  StatusConfirmed,
	}
}

func TestAddAllocation(t *testing.T) {
	t.Parallel()

	t.Run("window fully outside snaps to the reservation window", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{
			Kind:       KindRoom,
			BuildingID: "bldg-1",
			RoomID:     "room-1",
			Period:     period(t, 4, 14, 16),
		})

		require.Len(t, r.Allocations, 1)
		got := r.Allocations[0].Period
		assert.Equal(t, r.Period.Start(), got.Start())
		assert.Equal(t, r.Period.End(), got.End())
	})

	t.Run("nested window is kept as is", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{
			Kind:   KindResource,
			Period: period(t, 4, 10, 11),
		})

		got := r.Allocations[0].Period
		assert.Equal(t, clock(10, 0), got.StartTime)
		assert.Equal(t, clock(11, 0), got.EndTime)
	})

	t.Run("partial overlap is clamped into the window", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{
			Kind:   KindResource,
			Period: period(t, 4, 11, 14),
		})

		got := r.Allocations[0].Period
		assert.Equal(t, clock(11, 0), got.StartTime)
		assert.Equal(t, clock(12, 0), got.EndTime)
	})

	t.Run("allocation without status mirrors the reservation", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{Kind: KindRoom, Period: period(t, 4, 10, 11)})
		assert.Equal(t, StatusConfirmed, r.Allocations[0].Status)
	})
}

func TestCalculateTotalCost(t *testing.T) {
	t.Parallel()

	t.Run("sums and rounds to two decimals", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{Kind: KindRoom, Period: period(t, 4, 9, 10), UnitCost: 10.333})
		r.AddAllocation(Allocation{Kind: KindRoom, Period: period(t, 4, 10, 11), UnitCost: 5.555})

		assert.InDelta(t, 15.89, r.Cost, 0.0001)
	})

	t.Run("resource quantity multiplies", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{
			Kind:       KindResource,
			ResourceID: "proj-1",
			Quantity:   3,
			Period:     period(t, 4, 9, 10),
			UnitCost:   2.50,
		})

		assert.InDelta(t, 7.50, r.Cost, 0.0001)
	})

	t.Run("recomputed when allocations change", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.AddAllocation(Allocation{Kind: KindRoom, Period: period(t, 4, 9, 10), UnitCost: 10})
		assert.InDelta(t, 10.0, r.Cost, 0.0001)

		r.AddAllocation(Allocation{Kind: KindRoom, Period: period(t, 4, 10, 11), UnitCost: 2})
		assert.InDelta(t, 12.0, r.Cost, 0.0001)
	})
}

func TestCopyTo(t *testing.T) {
	t.Parallel()

	t.Run("never overwrites an existing status", func(t *testing.T) {
		t.Parallel()

		source := roomReservation(t)
		source.Status = StatusConfirmed

		target := Reservation{Status: StatusAwaitingApproval, Period: period(t, 11, 0, 0)}
		source.CopyTo(&target, false)

		assert.Equal(t, StatusAwaitingApproval, target.Status)
	})

	t.Run("fills an empty status", func(t *testing.T) {
		t.Parallel()

		source := roomReservation(t)
		target := Reservation{Period: period(t, 11, 0, 0)}
		source.CopyTo(&target, false)

		assert.Equal(t, StatusConfirmed, target.Status)
	})

	t.Run("keeps target dates unless date change is allowed", func(t *testing.T) {
		t.Parallel()

		source := roomReservation(t)
		target := Reservation{Period: period(t, 11, 0, 0)}
		source.CopyTo(&target, false)

		assert.Equal(t, day(11), target.Period.StartDate)
		assert.Equal(t, clock(9, 0), target.Period.StartTime)
		assert.Equal(t, clock(12, 0), target.Period.EndTime)

		source.CopyTo(&target, true)
		assert.Equal(t, day(4), target.Period.StartDate)
	})

	t.Run("allocations are deep copied", func(t *testing.T) {
		t.Parallel()

		source := roomReservation(t)
		source.AddAllocation(Allocation{Kind: KindRoom, RoomID: "room-1", Period: period(t, 4, 9, 10), UnitCost: 4})

		target := Reservation{Period: period(t, 11, 0, 0)}
		source.CopyTo(&target, false)

		require.Len(t, target.Allocations, 1)
		target.Allocations[0].RoomID = "room-2"
		assert.Equal(t, "room-1", source.Allocations[0].RoomID)
		assert.Equal(t, day(11), target.Allocations[0].Period.StartDate)
		assert.InDelta(t, 4.0, target.Cost, 0.0001)
	})

	t.Run("never copies identity", func(t *testing.T) {
		t.Parallel()

		source := roomReservation(t)
		target := Reservation{ID: "res-2", Period: period(t, 11, 0, 0)}
		source.CopyTo(&target, false)
		assert.Equal(t, "res-2", target.ID)
	})
}

func TestCloneForDate(t *testing.T) {
	t.Parallel()

	source := roomReservation(t)
	source.ParentID = "res-1"
	source.RuleText = "type=week;interval=1;days=0101000;total="
	source.AddAllocation(Allocation{Kind: KindRoom, RoomID: "room-1", Period: period(t, 4, 9, 10)})

	clone := source.CloneForDate(day(6))

	assert.Empty(t, clone.ID)
	assert.Equal(t, day(6), clone.Period.StartDate)
	assert.Equal(t, day(6), clone.Period.EndDate)
	assert.Equal(t, clock(9, 0), clone.Period.StartTime)
	assert.Equal(t, "res-1", clone.ParentID)
	assert.Equal(t, source.RuleText, clone.RuleText)
	require.Len(t, clone.Allocations, 1)
	assert.Equal(t, day(6), clone.Allocations[0].Period.StartDate)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("occurrence must stay on one day", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.ID = "occ-2"
		r.ParentID = "res-1"
		r.Period.SetDates(day(4), day(5))
		require.Error(t, r.Validate())
	})

	t.Run("anchor may span the series range", func(t *testing.T) {
		t.Parallel()

		r := roomReservation(t)
		r.ParentID = r.ID
		r.Period.SetDates(day(4), day(25))
		require.NoError(t, r.Validate())
	})
}
