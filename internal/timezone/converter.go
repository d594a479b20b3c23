package timezone

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/reservation-engine/internal/timeperiod"
)

// BuildingDirectory resolves the IANA timezone identifier of a building. The
// conflict-relevant comparison for a reservation always happens in the
// timezone of the physical resource being booked, so conversions are anchored
// to a specific building rather than any ambient zone.
type BuildingDirectory interface {
	TimezoneID(ctx context.Context, buildingID string) (string, error)
}

// Converter moves TimePeriod values between the storage timezone and a
// caller-requested timezone using a building's offset rules.
type Converter struct {
	buildings BuildingDirectory
	logger    *slog.Logger
}

// NewConverter wires the converter with its building directory. Logger may be
// nil.
func NewConverter(buildings BuildingDirectory, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{buildings: buildings, logger: logger}
}

// ToBuildingLocal converts the period into the building's local timezone. The
// period's own TimezoneID names the zone its values are currently expressed
// in; when empty, UTC is assumed.
//
// Lookup failures never surface as errors: the converter degrades to a
// UTC-anchored conversion and reports degraded=true so the caller can flag
// reduced precision.
func (c *Converter) ToBuildingLocal(ctx context.Context, period timeperiod.TimePeriod, buildingID string) (timeperiod.TimePeriod, bool) {
	target, degraded := c.buildingLocation(ctx, buildingID)
	converted := convert(period, target)
	return converted, degraded
}

// ToRequestorZone converts a building-local period into the zone the caller
// asked for. An unparseable requested zone degrades to UTC.
func (c *Converter) ToRequestorZone(ctx context.Context, period timeperiod.TimePeriod, buildingID, requestedZone string) (timeperiod.TimePeriod, bool) {
	_, degraded := c.buildingLocation(ctx, buildingID)

	target, err := loadLocation(requestedZone)
	if err != nil {
		c.logger.Warn("unknown requested timezone, using UTC", "zone", requestedZone, "error", err)
		target = time.UTC
		degraded = true
	}

	converted := convert(period, target)
	return converted, degraded
}

// buildingLocation resolves the building's zone, falling back to UTC when the
// reservation has no allocation yet or the building is unknown.
func (c *Converter) buildingLocation(ctx context.Context, buildingID string) (*time.Location, bool) {
	if c == nil || c.buildings == nil || buildingID == "" {
		return time.UTC, true
	}

	zoneID, err := c.buildings.TimezoneID(ctx, buildingID)
	if err != nil {
		c.logger.Warn("building timezone lookup failed, using UTC", "building_id", buildingID, "error", err)
		return time.UTC, true
	}

	loc, err := loadLocation(zoneID)
	if err != nil {
		c.logger.Warn("building has unknown timezone, using UTC", "building_id", buildingID, "zone", zoneID, "error", err)
		return time.UTC, true
	}
	return loc, false
}

// convert reads the period's instants in its source zone, shifts them into the
// target zone, and decomposes the result back into naive date/time pairs.
// Crossing midnight during the shift rolls the date axis accordingly.
func convert(period timeperiod.TimePeriod, target *time.Location) timeperiod.TimePeriod {
	source, err := loadLocation(period.TimezoneID)
	if err != nil {
		source = time.UTC
	}

	start := inZone(period.Start(), source).In(target)
	end := inZone(period.End(), source).In(target)

	out := period.Clone()
	out.StartDate, out.StartTime = timeperiod.Decompose(naive(start))
	out.EndDate, out.EndTime = timeperiod.Decompose(naive(end))
	out.TimezoneID = target.String()
	return out
}

// inZone reinterprets a naive instant as wall-clock time in loc.
func inZone(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// naive strips the location from an instant, keeping its wall-clock fields.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func loadLocation(zoneID string) (*time.Location, error) {
	if zoneID == "" || zoneID == "UTC" {
		return time.UTC, nil
	}
	return time.LoadLocation(zoneID)
}
