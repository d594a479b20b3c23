package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies a recurrence variant. The values double as the type field
// of the serialized rule string.
type Type string

const (
	// TypeOnce marks a single, non-recurring booking.
	TypeOnce Type = "once"
	// TypeDaily repeats every N days.
	TypeDaily Type = "day"
	// TypeWeekly repeats on a set of weekdays every N weeks.
	TypeWeekly Type = "week"
	// TypeMonthly repeats every N months on a fixed day or a weekday ordinal.
	TypeMonthly Type = "month"
	// TypeYearly repeats every N years in a fixed month.
	TypeYearly Type = "year"
)

// Ordinal selects the nth matching weekday within a month. OrdinalLast picks
// the final matching weekday regardless of month length.
type Ordinal int

const (
	OrdinalNone Ordinal = iota
	OrdinalFirst
	OrdinalSecond
	OrdinalThird
	OrdinalFourth
	OrdinalLast
)

// WeekdaySet is a fixed membership set indexed by time.Weekday.
type WeekdaySet [7]bool

// Add marks a weekday as selected.
func (s *WeekdaySet) Add(day time.Weekday) {
	s[day] = true
}

// Contains reports whether the weekday is selected.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	return s[day]
}

// Count returns the number of selected weekdays.
func (s WeekdaySet) Count() int {
	n := 0
	for _, set := range s {
		if set {
			n++
		}
	}
	return n
}

// Weekdays lists selected days Sunday-first, matching time.Weekday order.
func (s WeekdaySet) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if s[day] {
			out = append(out, day)
		}
	}
	return out
}

var (
	// ErrInvalidPattern indicates the pattern's fields violate a variant
	// invariant.
	ErrInvalidPattern = errors.New("recurrence: invalid pattern")
	// ErrNoOccurrences indicates the pattern yields zero occurrence dates.
	ErrNoOccurrences = errors.New("recurrence: pattern yields no occurrences")
	// ErrOccurrenceLimit indicates a caller-required sequence exceeds the
	// configured occurrence cap. This is a hard failure, never a silent
	// truncation.
	ErrOccurrenceLimit = errors.New("recurrence: occurrence count exceeds the configured limit")
)

// Pattern describes one recurrence rule. A pattern is a pure value: for
// identical field values the generated date sequence is identical. Patterns
// are treated as immutable after construction except that parsing a persisted
// rule may adjust EndDate and Count afterwards via ApplyBounds.
type Pattern struct {
	Type      Type
	Interval  int
	StartDate time.Time
	EndDate   *time.Time
	Count     *int

	// Weekly selector.
	Weekdays WeekdaySet

	// Monthly/yearly selectors. Exactly one of DayOfMonth or
	// WeekOfMonth+Weekday is active.
	DayOfMonth  int
	WeekOfMonth Ordinal
	Weekday     time.Weekday

	// Yearly only.
	Month time.Month
}

// ApplyBounds attaches the series window to a parsed pattern. The start date
// is required; endDate and count may both be nil for an open-ended series.
func (p *Pattern) ApplyBounds(startDate time.Time, endDate *time.Time, count *int) {
	p.StartDate = startDate
	p.EndDate = endDate
	if count != nil {
		p.Count = count
	}
}

// Validate checks the variant invariants. It does not expand the sequence;
// cap enforcement happens during generation.
func (p Pattern) Validate() error {
	if p.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidPattern)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidPattern)
	}
	if p.Count != nil && *p.Count <= 0 {
		return fmt.Errorf("%w: occurrence count must be positive", ErrInvalidPattern)
	}

	switch p.Type {
	case TypeOnce:
		return nil
	case TypeDaily:
		return p.validateInterval()
	case TypeWeekly:
		if err := p.validateInterval(); err != nil {
			return err
		}
		if p.Weekdays.Count() == 0 {
			return fmt.Errorf("%w: weekly pattern requires at least one weekday", ErrInvalidPattern)
		}
		return nil
	case TypeMonthly:
		if err := p.validateInterval(); err != nil {
			return err
		}
		return p.validateMonthSelector()
	case TypeYearly:
		if err := p.validateInterval(); err != nil {
			return err
		}
		if p.Month < time.January || p.Month > time.December {
			return fmt.Errorf("%w: yearly pattern requires a month", ErrInvalidPattern)
		}
		return p.validateMonthSelector()
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPattern, p.Type)
	}
}

func (p Pattern) validateInterval() error {
	if p.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1", ErrInvalidPattern)
	}
	return nil
}

// validateMonthSelector enforces that exactly one of the fixed-day and
// weekday-ordinal selectors is active.
func (p Pattern) validateMonthSelector() error {
	hasDay := p.DayOfMonth > 0
	hasOrdinal := p.WeekOfMonth != OrdinalNone
	if hasDay == hasOrdinal {
		return fmt.Errorf("%w: exactly one of day-of-month and weekday-ordinal must be set", ErrInvalidPattern)
	}
	if hasDay && p.DayOfMonth > 31 {
		return fmt.Errorf("%w: day-of-month out of range", ErrInvalidPattern)
	}
	if hasOrdinal && (p.WeekOfMonth < OrdinalFirst || p.WeekOfMonth > OrdinalLast) {
		return fmt.Errorf("%w: week-of-month out of range", ErrInvalidPattern)
	}
	return nil
}

// Equal compares the fields material to recurrence semantics: type, interval,
// selector and total. Bounds are compared too so drift detection can reuse it.
func (p Pattern) Equal(other Pattern) bool {
	if p.Type != other.Type || p.Interval != other.Interval {
		return false
	}
	if p.Weekdays != other.Weekdays {
		return false
	}
	if p.DayOfMonth != other.DayOfMonth || p.WeekOfMonth != other.WeekOfMonth {
		return false
	}
	if p.WeekOfMonth != OrdinalNone && p.Weekday != other.Weekday {
		return false
	}
	if p.Month != other.Month {
		return false
	}
	if (p.Count == nil) != (other.Count == nil) {
		return false
	}
	if p.Count != nil && *p.Count != *other.Count {
		return false
	}
	return true
}
