package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reservation-engine/internal/persistence"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testReservation(id string) persistence.Reservation {
	return persistence.Reservation{
		ID:            id,
		Kind:          "room",
		OwnerID:       "user-1",
		Title:         "weekly sync",
		ParentID:      id,
		CorrelationID: "corr-1",
		RuleText:      "type=week;interval=1;days=0101000;total=4",
		StartDate:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		StartTime:     time.Date(1970, time.January, 1, 9, 0, 0, 0, time.UTC),
		EndTime:       time.Date(1970, time.January, 1, 10, 0, 0, 0, time.UTC),
		TimezoneID:    "UTC",
		Status:        "confirmed",
		Cost:          25.50,
		Attendees:     []string{"alice@example.com", "bob@example.com"},
		Allocations: []persistence.Allocation{
			{
				ID:            id + "-alloc-1",
				ReservationID: id,
				Kind:          "room",
				BuildingID:    "bld-1",
				FloorID:       "floor-2",
				RoomID:        "room-201",
				Quantity:      1,
				StartDate:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
				EndDate:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
				StartTime:     time.Date(1970, time.January, 1, 9, 0, 0, 0, time.UTC),
				EndTime:       time.Date(1970, time.January, 1, 10, 0, 0, 0, time.UTC),
				TimezoneID:    "UTC",
				Status:        "confirmed",
				UnitCost:      25.50,
			},
		},
		CreatedAt: time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveAndGetReservation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := testReservation("res-1")
	require.NoError(t, store.SaveReservation(ctx, want))

	got, err := store.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_GetReservation_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetReservation(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_SaveReservation_Duplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	reservation := testReservation("res-1")
	require.NoError(t, store.SaveReservation(ctx, reservation))

	err := store.SaveReservation(ctx, reservation)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestStore_UpdateReservation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	reservation := testReservation("res-1")
	require.NoError(t, store.SaveReservation(ctx, reservation))

	reservation.Status = "cancelled"
	reservation.Allocations[0].Status = "cancelled"
	reservation.UpdatedAt = reservation.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.UpdateReservation(ctx, reservation))

	got, err := store.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
	require.Len(t, got.Allocations, 1)
	assert.Equal(t, "cancelled", got.Allocations[0].Status)
}

func TestStore_UpdateReservation_Missing(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateReservation(context.Background(), testReservation("missing"))
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_ListByParentID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	anchor := testReservation("res-1")
	require.NoError(t, store.SaveReservation(ctx, anchor))

	occurrence := testReservation("res-2")
	occurrence.ParentID = "res-1"
	occurrence.StartDate = time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
	occurrence.EndDate = occurrence.StartDate
	occurrence.Allocations = nil
	require.NoError(t, store.SaveReservation(ctx, occurrence))

	unrelated := testReservation("res-3")
	unrelated.ParentID = "res-3"
	unrelated.Allocations = nil
	require.NoError(t, store.SaveReservation(ctx, unrelated))

	got, err := store.ListByParentID(ctx, "res-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "res-1", got[0].ID)
	assert.Equal(t, "res-2", got[1].ID)
	assert.Len(t, got[0].Allocations, 1)
}

func TestStore_ListByCorrelationID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testReservation("res-1")
	require.NoError(t, store.SaveReservation(ctx, first))

	second := testReservation("res-2")
	second.CorrelationID = "corr-other"
	second.Allocations = nil
	require.NoError(t, store.SaveReservation(ctx, second))

	got, err := store.ListByCorrelationID(ctx, "corr-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-1", got[0].ID)
}

func TestStore_ListOverlapping(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	onDay := testReservation("res-1")
	require.NoError(t, store.SaveReservation(ctx, onDay))

	otherDay := testReservation("res-2")
	otherDay.StartDate = time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	otherDay.EndDate = otherDay.StartDate
	otherDay.Allocations = nil
	require.NoError(t, store.SaveReservation(ctx, otherDay))

	cancelled := testReservation("res-3")
	cancelled.Status = "cancelled"
	cancelled.Allocations = nil
	require.NoError(t, store.SaveReservation(ctx, cancelled))

	t.Run("filters by day and status", func(t *testing.T) {
		got, err := store.ListOverlapping(ctx, persistence.OverlapFilter{
			Kind:     "room",
			Date:     "2024-01-01",
			Statuses: []string{"confirmed", "awaiting_approval"},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "res-1", got[0].ID)
	})

	t.Run("excludes requested ids", func(t *testing.T) {
		got, err := store.ListOverlapping(ctx, persistence.OverlapFilter{
			Kind:      "room",
			Date:      "2024-01-01",
			Statuses:  []string{"confirmed"},
			ExceptIDs: []string{"res-1"},
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStore_Catalog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	building := persistence.Building{ID: "bld-1", Name: "HQ", TimezoneID: "America/New_York"}
	require.NoError(t, store.SaveBuilding(ctx, building))

	got, err := store.GetBuilding(ctx, "bld-1")
	require.NoError(t, err)
	assert.Equal(t, building, got)

	_, err = store.GetBuilding(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	room := persistence.Resource{ID: "room-201", Kind: "room", BuildingID: "bld-1", FloorID: "floor-2", Name: "Walnut", Capacity: 8, UnitCost: 25.50}
	projector := persistence.Resource{ID: "equip-1", Kind: "resource", BuildingID: "bld-1", Name: "Projector", UnitCost: 5}
	require.NoError(t, store.SaveResource(ctx, room))
	require.NoError(t, store.SaveResource(ctx, projector))

	rooms, err := store.ListResources(ctx, "room")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room, rooms[0])
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Migrate(context.Background()))
}
