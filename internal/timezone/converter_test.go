package timezone

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reservation-engine/internal/timeperiod"
)

type directoryStub struct {
	zones map[string]string
	err   error
}

func (d *directoryStub) TimezoneID(_ context.Context, buildingID string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	zone, ok := d.zones[buildingID]
	if !ok {
		return "", errors.New("unknown building")
	}
	return zone, nil
}

func mustPeriod(t *testing.T, startDate, endDate time.Time, startHour, startMin, endHour, endMin int, zone string) timeperiod.TimePeriod {
	t.Helper()
	p, err := timeperiod.New(
		startDate, endDate,
		time.Date(timeperiod.SentinelYear, 1, 1, startHour, startMin, 0, 0, time.UTC),
		time.Date(timeperiod.SentinelYear, 1, 1, endHour, endMin, 0, 0, time.UTC),
		zone,
	)
	require.NoError(t, err)
	return p
}

func TestConverter_ToBuildingLocal(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	directory := &directoryStub{zones: map[string]string{"bldg-1": "Etc/GMT+5"}}

	t.Run("shifts a UTC window into the building zone", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(directory, nil)
		period := mustPeriod(t, day, day, 9, 0, 11, 0, "UTC")

		got, degraded := conv.ToBuildingLocal(context.Background(), period, "bldg-1")
		assert.False(t, degraded)
		assert.Equal(t, time.Date(2024, time.March, 4, 4, 0, 0, 0, time.UTC), got.Start())
		assert.Equal(t, time.Date(2024, time.March, 4, 6, 0, 0, 0, time.UTC), got.End())
		assert.Equal(t, "Etc/GMT+5", got.TimezoneID)
	})

	t.Run("rolls to the previous day when crossing midnight", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(directory, nil)
		period := mustPeriod(t, day, day, 2, 0, 3, 0, "UTC")

		got, degraded := conv.ToBuildingLocal(context.Background(), period, "bldg-1")
		assert.False(t, degraded)
		assert.Equal(t, time.Date(2024, time.March, 3, 21, 0, 0, 0, time.UTC), got.Start())
		assert.Equal(t, time.Date(2024, time.March, 3, 22, 0, 0, 0, time.UTC), got.End())
	})

	t.Run("degrades to UTC when the building is unknown", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(directory, nil)
		period := mustPeriod(t, day, day, 9, 0, 11, 0, "UTC")

		got, degraded := conv.ToBuildingLocal(context.Background(), period, "bldg-missing")
		assert.True(t, degraded)
		assert.Equal(t, period.Start(), got.Start())
		assert.Equal(t, period.End(), got.End())
	})

	t.Run("degrades to UTC when no allocation names a building", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(directory, nil)
		period := mustPeriod(t, day, day, 9, 0, 11, 0, "UTC")

		got, degraded := conv.ToBuildingLocal(context.Background(), period, "")
		assert.True(t, degraded)
		assert.Equal(t, period.Start(), got.Start())
	})

	t.Run("degrades to UTC when the directory errors", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(&directoryStub{err: errors.New("directory down")}, nil)
		period := mustPeriod(t, day, day, 9, 0, 11, 0, "UTC")

		_, degraded := conv.ToBuildingLocal(context.Background(), period, "bldg-1")
		assert.True(t, degraded)
	})
}

func TestConverter_ToRequestorZone(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	directory := &directoryStub{zones: map[string]string{"bldg-1": "Etc/GMT+5"}}

	t.Run("converts building local values into the requested zone", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(directory, nil)
		period := mustPeriod(t, day, day, 4, 0, 6, 0, "Etc/GMT+5")

		got, degraded := conv.ToRequestorZone(context.Background(), period, "bldg-1", "UTC")
		assert.False(t, degraded)
		assert.Equal(t, time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), got.Start())
		assert.Equal(t, time.Date(2024, time.March, 4, 11, 0, 0, 0, time.UTC), got.End())
	})

	t.Run("unknown requested zone degrades to UTC", func(t *testing.T) {
		t.Parallel()

		conv := NewConverter(directory, nil)
		period := mustPeriod(t, day, day, 4, 0, 6, 0, "Etc/GMT+5")

		got, degraded := conv.ToRequestorZone(context.Background(), period, "bldg-1", "Not/AZone")
		assert.True(t, degraded)
		assert.Equal(t, "UTC", got.TimezoneID)
	})
}
