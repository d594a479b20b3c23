package recurrence

import (
	"fmt"
	"time"

	"github.com/example/reservation-engine/internal/timeperiod"
)

// DefaultMaxOccurrences bounds sequence expansion when the caller does not
// override the limit. Long walks are capped to bound worst-case latency
// against the external calendar system.
const DefaultMaxOccurrences = 100

// Limits carries the expansion ceilings threaded in from configuration.
type Limits struct {
	MaxOccurrences int
}

func (l Limits) cap() int {
	if l.MaxOccurrences <= 0 {
		return DefaultMaxOccurrences
	}
	return l.MaxOccurrences
}

// Dates expands the pattern into its ordered occurrence date sequence.
//
// The sequence is ascending, starts at the first matching date on or after
// StartDate, ends at or before EndDate when one is set, and is deterministic
// for identical inputs. Weekly multi-weekday patterns emit all selected
// weekdays of an interval week in calendar order before advancing to the next
// interval week.
//
// Capping: when the caller explicitly required more dates than the limit
// allows (a fixed end date or an explicit count implying a longer sequence),
// the whole expansion fails with ErrOccurrenceLimit. Only open-ended patterns
// are silently truncated at the limit.
func (p Pattern) Dates(limits Limits) ([]time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	maxDates := limits.cap()

	wanted := -1
	if p.Count != nil {
		if *p.Count > maxDates {
			return nil, fmt.Errorf("%w: requested %d occurrences, limit is %d", ErrOccurrenceLimit, *p.Count, maxDates)
		}
		wanted = *p.Count
	}

	step := p.stepper()
	dates := make([]time.Time, 0, 16)

	for {
		date, ok := step.next()
		if !ok {
			break
		}
		if p.EndDate != nil && date.After(timeperiod.DateOnly(*p.EndDate)) {
			break
		}
		if wanted >= 0 && len(dates) == wanted {
			break
		}
		if len(dates) == maxDates {
			if p.EndDate != nil {
				return nil, fmt.Errorf("%w: pattern through %s implies more than %d occurrences",
					ErrOccurrenceLimit, p.EndDate.Format(time.DateOnly), maxDates)
			}
			// Open-ended sequence: truncate at the ceiling.
			break
		}
		dates = append(dates, date)
	}

	if len(dates) == 0 {
		return nil, ErrNoOccurrences
	}
	return dates, nil
}

// Repeats returns a walker over every occurrence after the first. The anchor
// date is never produced: it is the record the caller has already
// materialized before the recurrence starts expanding.
//
// The walker is a finite, non-restartable forward sequence. The full sequence
// is resolved up front so cap violations surface here rather than mid-walk.
func (p Pattern) Repeats(limits Limits) (*Walker, error) {
	dates, err := p.Dates(limits)
	if err != nil {
		return nil, err
	}
	return &Walker{dates: dates[1:]}, nil
}

// Walker yields the repeat dates of a series in ascending order.
type Walker struct {
	dates []time.Time
	pos   int
}

// Next returns the next repeat date. The second result is false once the
// sequence is exhausted.
func (w *Walker) Next() (time.Time, bool) {
	if w == nil || w.pos >= len(w.dates) {
		return time.Time{}, false
	}
	date := w.dates[w.pos]
	w.pos++
	return date, true
}

// Remaining reports how many dates have not yet been consumed.
func (w *Walker) Remaining() int {
	if w == nil {
		return 0
	}
	return len(w.dates) - w.pos
}

// Walk feeds each remaining date to action in order. Returning false from the
// action stops the walk early; callers use this to halt on the first conflict
// or failed save.
func (w *Walker) Walk(action func(date time.Time) bool) {
	for {
		date, ok := w.Next()
		if !ok {
			return
		}
		if !action(date) {
			return
		}
	}
}

// stepper produces candidate dates for one pattern variant, ascending,
// starting at the first match on or after StartDate. Steppers are unbounded;
// Dates applies the end/count/cap bounds.
type stepper interface {
	next() (time.Time, bool)
}

func (p Pattern) stepper() stepper {
	start := timeperiod.DateOnly(p.StartDate)
	switch p.Type {
	case TypeOnce:
		return &onceStepper{date: start}
	case TypeDaily:
		return &dailyStepper{current: start, interval: p.Interval}
	case TypeWeekly:
		return newWeeklyStepper(start, p.Interval, p.Weekdays)
	case TypeMonthly:
		return newMonthlyStepper(start, p.Interval, p.DayOfMonth, p.WeekOfMonth, p.Weekday)
	case TypeYearly:
		return newYearlyStepper(start, p.Interval, p.Month, p.DayOfMonth, p.WeekOfMonth, p.Weekday)
	default:
		// Validate rejects unknown types before generation.
		panic(fmt.Sprintf("recurrence: stepper for unknown type %q", p.Type))
	}
}

type onceStepper struct {
	date time.Time
	done bool
}

func (s *onceStepper) next() (time.Time, bool) {
	if s.done {
		return time.Time{}, false
	}
	s.done = true
	return s.date, true
}

type dailyStepper struct {
	current  time.Time
	interval int
}

func (s *dailyStepper) next() (time.Time, bool) {
	date := s.current
	s.current = s.current.AddDate(0, 0, s.interval)
	return date, true
}

// weeklyStepper walks interval weeks starting at the week containing the
// start date. Weeks begin on Monday; within a week the selected weekdays are
// visited Monday through Sunday so dates come out in calendar order.
type weeklyStepper struct {
	weekStart time.Time
	start     time.Time
	interval  int
	days      []int // day offsets from Monday, ascending
	idx       int
}

func newWeeklyStepper(start time.Time, interval int, set WeekdaySet) *weeklyStepper {
	days := make([]int, 0, 7)
	for offset := 0; offset < 7; offset++ {
		if set.Contains(weekdayAtOffset(offset)) {
			days = append(days, offset)
		}
	}
	return &weeklyStepper{
		weekStart: mondayOf(start),
		start:     start,
		interval:  interval,
		days:      days,
	}
}

func (s *weeklyStepper) next() (time.Time, bool) {
	for {
		if s.idx == len(s.days) {
			s.idx = 0
			s.weekStart = s.weekStart.AddDate(0, 0, 7*s.interval)
		}
		date := s.weekStart.AddDate(0, 0, s.days[s.idx])
		s.idx++
		if date.Before(s.start) {
			continue
		}
		return date, true
	}
}

// monthlyStepper walks interval months resolving either a fixed day-of-month
// (clamped to the month's final day when shorter) or an nth-weekday ordinal.
type monthlyStepper struct {
	year     int
	month    time.Month
	start    time.Time
	interval int

	dayOfMonth  int
	weekOfMonth Ordinal
	weekday     time.Weekday
}

func newMonthlyStepper(start time.Time, interval, dayOfMonth int, ordinal Ordinal, weekday time.Weekday) *monthlyStepper {
	return &monthlyStepper{
		year:        start.Year(),
		month:       start.Month(),
		start:       start,
		interval:    interval,
		dayOfMonth:  dayOfMonth,
		weekOfMonth: ordinal,
		weekday:     weekday,
	}
}

func (s *monthlyStepper) next() (time.Time, bool) {
	for {
		date := resolveMonthDay(s.year, s.month, s.dayOfMonth, s.weekOfMonth, s.weekday)
		s.advance()
		if date.Before(s.start) {
			continue
		}
		return date, true
	}
}

func (s *monthlyStepper) advance() {
	month := int(s.month) + s.interval
	s.year += (month - 1) / 12
	s.month = time.Month((month-1)%12 + 1)
}

type yearlyStepper struct {
	year     int
	start    time.Time
	interval int

	month       time.Month
	dayOfMonth  int
	weekOfMonth Ordinal
	weekday     time.Weekday
}

func newYearlyStepper(start time.Time, interval int, month time.Month, dayOfMonth int, ordinal Ordinal, weekday time.Weekday) *yearlyStepper {
	return &yearlyStepper{
		year:        start.Year(),
		start:       start,
		interval:    interval,
		month:       month,
		dayOfMonth:  dayOfMonth,
		weekOfMonth: ordinal,
		weekday:     weekday,
	}
}

func (s *yearlyStepper) next() (time.Time, bool) {
	for {
		date := resolveMonthDay(s.year, s.month, s.dayOfMonth, s.weekOfMonth, s.weekday)
		s.year += s.interval
		if date.Before(s.start) {
			continue
		}
		return date, true
	}
}

// resolveMonthDay materializes the selector within one month. A fixed day
// past the month's end clamps to the final day; the "last" ordinal resolves
// to the final matching weekday regardless of month length.
func resolveMonthDay(year int, month time.Month, dayOfMonth int, ordinal Ordinal, weekday time.Weekday) time.Time {
	if dayOfMonth > 0 {
		day := dayOfMonth
		if last := daysInMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	return nthWeekdayOfMonth(year, month, weekday, ordinal)
}

func nthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, ordinal Ordinal) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	firstMatch := first.AddDate(0, 0, offset)

	if ordinal == OrdinalLast {
		last := firstMatch
		for {
			candidate := last.AddDate(0, 0, 7)
			if candidate.Month() != month {
				return last
			}
			last = candidate
		}
	}

	return firstMatch.AddDate(0, 0, 7*(int(ordinal)-1))
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// mondayOf returns the Monday beginning the week containing t.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return timeperiod.DateOnly(t).AddDate(0, 0, -offset)
}

func weekdayAtOffset(offsetFromMonday int) time.Weekday {
	return time.Weekday((offsetFromMonday + 1) % 7)
}
