package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reservation-engine/internal/config"
	"github.com/example/reservation-engine/internal/persistence"
	"github.com/example/reservation-engine/internal/recurrence"
	"github.com/example/reservation-engine/internal/reservation"
	"github.com/example/reservation-engine/internal/testfixtures"
	"github.com/example/reservation-engine/internal/timeperiod"
	"github.com/example/reservation-engine/internal/timezone"
)

func engineConfig() config.Engine {
	return config.Engine{
		MaxOccurrences:    100,
		MaxFreeBusyChecks: 25,
		FreeBusyCacheTTL:  time.Minute,
		FreeBusyPerSecond: 1000,
	}
}

func newTestChecker(store *testfixtures.MemoryStore, cal *testfixtures.FakeCalendar) *Checker {
	converter := timezone.NewConverter(store, nil)
	if cal == nil {
		// A nil interface, not a typed nil pointer.
		return NewChecker(store, store, nil, converter, engineConfig(), nil)
	}
	return NewChecker(store, store, cal, converter, engineConfig(), nil)
}

func seedRooms(store *testfixtures.MemoryStore, ids ...string) {
	store.SeedBuildings(persistence.Building{ID: "bld-1", Name: "HQ", TimezoneID: "UTC"})
	for _, id := range ids {
		store.SeedResources(persistence.Resource{ID: id, Kind: "room", BuildingID: "bld-1", Name: id})
	}
}

func window(date time.Time, startHour, endHour int) timeperiod.TimePeriod {
	return timeperiod.TimePeriod{
		StartDate:  timeperiod.DateOnly(date),
		EndDate:    timeperiod.DateOnly(date),
		StartTime:  time.Date(timeperiod.SentinelYear, time.January, 1, startHour, 0, 0, 0, time.UTC),
		EndTime:    time.Date(timeperiod.SentinelYear, time.January, 1, endHour, 0, 0, 0, time.UTC),
		TimezoneID: "UTC",
	}
}

func TestChecker_FindAvailable(t *testing.T) {
	store := testfixtures.NewMemoryStore()
	seedRooms(store, "room-1", "room-2")

	jan1 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	store.Seed(testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("existing"),
		testfixtures.WithDate(jan1),
		testfixtures.WithClocks(
			time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC),
			time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC)),
		testfixtures.WithRoom("bld-1", "room-1"),
	).Stored())

	checker := newTestChecker(store, nil)
	ctx := context.Background()

	t.Run("booked room excluded", func(t *testing.T) {
		free, err := checker.FindAvailable(ctx, reservation.KindRoom, window(jan1, 9, 10), nil)
		require.NoError(t, err)
		require.Len(t, free, 1)
		assert.Equal(t, "room-2", free[0].ID)
	})

	t.Run("touching windows do not conflict", func(t *testing.T) {
		free, err := checker.FindAvailable(ctx, reservation.KindRoom, window(jan1, 10, 11), nil)
		require.NoError(t, err)
		assert.Len(t, free, 2)
	})

	t.Run("excepted reservation does not block", func(t *testing.T) {
		free, err := checker.FindAvailable(ctx, reservation.KindRoom, window(jan1, 9, 10), []string{"existing"})
		require.NoError(t, err)
		assert.Len(t, free, 2)
	})

	t.Run("cancelled booking releases the room", func(t *testing.T) {
		cancelledDay := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		store.Seed(testfixtures.NewReservationFixture(
			testfixtures.WithDate(cancelledDay),
			testfixtures.WithStatus(reservation.StatusCancelled),
			testfixtures.WithRoom("bld-1", "room-1"),
		).Stored())

		free, err := checker.FindAvailable(ctx, reservation.KindRoom, window(cancelledDay, 9, 10), nil)
		require.NoError(t, err)
		assert.Len(t, free, 2)
	})
}

func TestChecker_FindAvailableAcrossSeries_Intersection(t *testing.T) {
	store := testfixtures.NewMemoryStore()
	seedRooms(store, "room-1", "room-2", "room-3")

	// Weekly Mondays from 2024-01-01: Jan 1, Jan 8, Jan 15. room-2 is booked
	// only on the third occurrence; it must still be excluded from the series
	// verdict.
	jan15 := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	store.Seed(testfixtures.NewReservationFixture(
		testfixtures.WithDate(jan15),
		testfixtures.WithClocks(
			time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC),
			time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC)),
		testfixtures.WithRoom("bld-1", "room-2"),
	).Stored())

	var weekdays recurrence.WeekdaySet
	weekdays.Add(time.Monday)
	count := 3
	pattern := recurrence.Pattern{
		Type:      recurrence.TypeWeekly,
		Interval:  1,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Count:     &count,
		Weekdays:  weekdays,
	}
	repeats, err := pattern.Repeats(recurrence.Limits{MaxOccurrences: 100})
	require.NoError(t, err)

	checker := newTestChecker(store, nil)
	anchorWindow := window(pattern.StartDate, 9, 10)

	free, err := checker.FindAvailableAcrossSeries(context.Background(), reservation.KindRoom, anchorWindow, repeats, nil)
	require.NoError(t, err)

	ids := make([]string, 0, len(free))
	for _, r := range free {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"room-1", "room-3"}, ids)
}

func TestChecker_FindAvailableForOccurrences(t *testing.T) {
	store := testfixtures.NewMemoryStore()
	seedRooms(store, "room-1", "room-2")

	jan1 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan8 := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)

	// The series being edited occupies room-1 on both days; its own records
	// must not block the edit.
	first := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("series-1"),
		testfixtures.WithParent("series-1"),
		testfixtures.WithDate(jan1),
		testfixtures.WithRoom("bld-1", "room-1"))
	second := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("series-2"),
		testfixtures.WithParent("series-1"),
		testfixtures.WithDate(jan8),
		testfixtures.WithRoom("bld-1", "room-1"))
	store.Seed(first.Stored(), second.Stored())

	// A foreign booking holds room-2 on the second date.
	store.Seed(testfixtures.NewReservationFixture(
		testfixtures.WithDate(jan8),
		testfixtures.WithRoom("bld-1", "room-2"),
	).Stored())

	checker := newTestChecker(store, nil)
	occurrences := []reservation.Reservation{first.Domain(), second.Domain()}

	free, err := checker.FindAvailableForOccurrences(context.Background(), reservation.KindRoom, window(jan1, 9, 10), occurrences)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "room-1", free[0].ID)
}

func TestChecker_CheckConflicts(t *testing.T) {
	store := testfixtures.NewMemoryStore()
	seedRooms(store, "room-1")

	jan1 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	store.Seed(testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("existing"),
		testfixtures.WithDate(jan1),
		testfixtures.WithRoom("bld-1", "room-1"),
	).Stored())

	checker := newTestChecker(store, nil)
	ctx := context.Background()

	candidate := testfixtures.NewReservationFixture(
		testfixtures.WithDate(jan1),
		testfixtures.WithRoom("bld-1", "room-1")).Domain()

	err := checker.CheckConflicts(ctx, &candidate, nil)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "room-1", conflict.TargetID)
	assert.Equal(t, jan1, conflict.Date)

	assert.NoError(t, checker.CheckConflicts(ctx, &candidate, []string{"existing"}))
}

func TestChecker_BuildingLocalComparison(t *testing.T) {
	store := testfixtures.NewMemoryStore()
	store.SeedBuildings(persistence.Building{ID: "bld-ny", Name: "NY", TimezoneID: "Etc/GMT+5"})
	store.SeedResources(persistence.Resource{ID: "room-ny", Kind: "room", BuildingID: "bld-ny", Name: "NY room"})

	jan1 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	// Booked 09:00-11:00 UTC in the UTC-5 building.
	store.Seed(testfixtures.NewReservationFixture(
		testfixtures.WithDate(jan1),
		testfixtures.WithClocks(
			time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC),
			time.Date(0, 1, 1, 11, 0, 0, 0, time.UTC)),
		testfixtures.WithRoom("bld-ny", "room-ny"),
	).Stored())

	checker := newTestChecker(store, nil)

	// 05:30-06:30 expressed in Etc/GMT+5 equals 10:30-11:30 UTC, overlapping
	// the stored booking once both are read in the building's zone.
	local := window(jan1, 5, 6)
	local.StartTime = time.Date(timeperiod.SentinelYear, 1, 1, 5, 30, 0, 0, time.UTC)
	local.EndTime = time.Date(timeperiod.SentinelYear, 1, 1, 6, 30, 0, 0, time.UTC)
	local.TimezoneID = "Etc/GMT+5"

	free, err := checker.FindAvailable(context.Background(), reservation.KindRoom, local, nil)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestChecker_CheckAttendeeAvailability(t *testing.T) {
	store := testfixtures.NewMemoryStore()
	cal := testfixtures.NewFakeCalendar()

	jan1 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	busyWindow := window(jan1, 9, 10)
	cal.Busy["busy@example.com"] = []timeperiod.TimePeriod{busyWindow}

	checker := newTestChecker(store, cal)
	ctx := context.Background()
	attendees := []string{"busy@example.com", "free@example.com"}

	conflicted, truncated, err := checker.CheckAttendeeAvailability(ctx, attendees, []timeperiod.TimePeriod{window(jan1, 9, 10)})
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, []string{"busy@example.com"}, conflicted)

	t.Run("results are cached", func(t *testing.T) {
		calls := cal.FreeBusyCalls
		_, _, err := checker.CheckAttendeeAvailability(ctx, attendees, []timeperiod.TimePeriod{window(jan1, 9, 10)})
		require.NoError(t, err)
		assert.Equal(t, calls, cal.FreeBusyCalls)
	})

	t.Run("check count is capped", func(t *testing.T) {
		windows := make([]timeperiod.TimePeriod, 0, 40)
		for day := 0; day < 40; day++ {
			windows = append(windows, window(jan1.AddDate(0, 0, day), 9, 10))
		}
		_, truncated, err := checker.CheckAttendeeAvailability(ctx, attendees, windows)
		require.NoError(t, err)
		assert.True(t, truncated)
	})
}
