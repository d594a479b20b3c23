package timeperiod

import (
	"errors"
	"fmt"
	"time"
)

// SentinelYear anchors time-of-day values that carry no meaningful date
// component. Clearing the date axis of a period rebases its clock values onto
// this date so comparisons only see the time-of-day.
const SentinelYear = 1970

var sentinelDate = time.Date(SentinelYear, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidOrdering indicates a period whose start follows its end on either
// the date axis or the time axis.
var ErrInvalidOrdering = errors.New("timeperiod: start must not be after end")

// TimePeriod is a naive (timezone-unaware) value combining a calendar date
// pair, a time-of-day pair and a timezone identifier describing how callers
// intend the values to be read. The struct itself performs no offset math;
// conversions live in the timezone package.
//
// A TimePeriod is owned exclusively by the reservation or allocation holding
// it. Copies are made with Clone, never by sharing.
type TimePeriod struct {
	StartDate  time.Time
	EndDate    time.Time
	StartTime  time.Time
	EndTime    time.Time
	TimezoneID string
}

// New constructs a period from date and clock components and validates the
// ordering invariant. Violations surface as ErrInvalidOrdering rather than
// being clamped.
func New(startDate, endDate, startTime, endTime time.Time, timezoneID string) (TimePeriod, error) {
	p := TimePeriod{
		StartDate:  DateOnly(startDate),
		EndDate:    DateOnly(endDate),
		StartTime:  TimeOnly(startTime),
		EndTime:    TimeOnly(endTime),
		TimezoneID: timezoneID,
	}
	if err := p.Validate(); err != nil {
		return TimePeriod{}, err
	}
	return p, nil
}

// FromInstants constructs a period from two composed instants, splitting each
// into its date and time-of-day components.
func FromInstants(start, end time.Time, timezoneID string) (TimePeriod, error) {
	startDate, startClock := Decompose(start)
	endDate, endClock := Decompose(end)
	return New(startDate, endDate, startClock, endClock, timezoneID)
}

// Validate reports ErrInvalidOrdering when both axes are populated and either
// runs backwards. A period with a cleared axis is always valid on that axis.
func (p TimePeriod) Validate() error {
	if !p.DatesCleared() && p.StartDate.After(p.EndDate) {
		return fmt.Errorf("%w: start date %s after end date %s", ErrInvalidOrdering,
			p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
	}
	if !p.TimesCleared() && p.StartTime.After(p.EndTime) {
		return fmt.Errorf("%w: start time %s after end time %s", ErrInvalidOrdering,
			p.StartTime.Format("15:04"), p.EndTime.Format("15:04"))
	}
	return nil
}

// Start composes the start date and start time into a single naive instant.
func (p TimePeriod) Start() time.Time {
	return Compose(p.StartDate, p.StartTime)
}

// End composes the end date and end time into a single naive instant.
func (p TimePeriod) End() time.Time {
	return Compose(p.EndDate, p.EndTime)
}

// Duration returns the span between the composed start and end instants.
func (p TimePeriod) Duration() time.Duration {
	return p.End().Sub(p.Start())
}

// ClearDates rebases both clock values onto the sentinel date, leaving only
// the time-of-day meaningful.
func (p *TimePeriod) ClearDates() {
	p.StartDate = sentinelDate
	p.EndDate = sentinelDate
}

// ClearTimes normalizes both time-of-day values to midnight while preserving
// the date axis.
func (p *TimePeriod) ClearTimes() {
	p.StartTime = sentinelDate
	p.EndTime = sentinelDate
}

// DatesCleared reports whether the date axis holds the sentinel value.
func (p TimePeriod) DatesCleared() bool {
	return p.StartDate.Equal(sentinelDate) && p.EndDate.Equal(sentinelDate)
}

// TimesCleared reports whether both clock values are midnight on the sentinel
// date.
func (p TimePeriod) TimesCleared() bool {
	return p.StartTime.Equal(sentinelDate) && p.EndTime.Equal(sentinelDate)
}

// SetDates replaces the date axis, keeping the clock values untouched.
func (p *TimePeriod) SetDates(start, end time.Time) {
	p.StartDate = DateOnly(start)
	p.EndDate = DateOnly(end)
}

// SetTimes replaces the time axis, keeping the dates untouched.
func (p *TimePeriod) SetTimes(start, end time.Time) {
	p.StartTime = TimeOnly(start)
	p.EndTime = TimeOnly(end)
}

// Retarget moves the period onto a single calendar day while keeping the
// stored time-of-day. Occurrence windows are always single-day.
func (p *TimePeriod) Retarget(date time.Time) {
	day := DateOnly(date)
	p.StartDate = day
	p.EndDate = day
}

// Overlaps reports whether two periods intersect when both are read in the
// same timezone. Touching endpoints do not overlap.
func (p TimePeriod) Overlaps(other TimePeriod) bool {
	return p.Start().Before(other.End()) && other.Start().Before(p.End())
}

// Contains reports whether the other period lies fully within p.
func (p TimePeriod) Contains(other TimePeriod) bool {
	return !other.Start().Before(p.Start()) && !other.End().After(p.End())
}

// Clone returns an independent copy of the period.
func (p TimePeriod) Clone() TimePeriod {
	return p
}

// Compose combines the calendar date of date with the clock of clock into one
// naive UTC instant.
func Compose(date, clock time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), time.UTC)
}

// Decompose splits an instant into its date component (midnight) and its
// time-of-day component rebased onto the sentinel date.
func Decompose(t time.Time) (date, clock time.Time) {
	return DateOnly(t), TimeOnly(t)
}

// DateOnly truncates an instant to midnight of its calendar day, dropping the
// clock.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TimeOnly rebases the clock of an instant onto the sentinel date.
func TimeOnly(t time.Time) time.Time {
	return time.Date(SentinelYear, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// SentinelDate exposes the shared sentinel used for cleared axes.
func SentinelDate() time.Time {
	return sentinelDate
}
