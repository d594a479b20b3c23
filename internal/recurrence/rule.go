package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRule indicates a rule string that cannot be parsed back into a
// pattern.
var ErrMalformedRule = errors.New("recurrence: malformed rule string")

// The rule string is a compact semicolon-separated key=value record, e.g.
//
//	type=week;interval=2;days=0101010;total=10
//	type=month;interval=1;day=15;total=
//	type=month;interval=3;week=5;weekday=1;total=
//	type=year;interval=1;month=6;day=30;total=12
//
// The days flag string is seven characters, Sunday first, matching
// time.Weekday ordering. An empty total means the series is bounded by its
// end date (or open-ended). Encode and Parse round-trip losslessly for the
// canonical fields: type, interval, selector and total.

// Encode serializes the pattern's canonical fields into the rule string.
func Encode(p Pattern) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type=%s", p.Type)

	if p.Type != TypeOnce {
		fmt.Fprintf(&b, ";interval=%d", p.Interval)
	}

	switch p.Type {
	case TypeWeekly:
		fmt.Fprintf(&b, ";days=%s", encodeWeekdayFlags(p.Weekdays))
	case TypeMonthly:
		encodeMonthSelector(&b, p)
	case TypeYearly:
		fmt.Fprintf(&b, ";month=%d", int(p.Month))
		encodeMonthSelector(&b, p)
	}

	if p.Type != TypeOnce {
		total := ""
		if p.Count != nil {
			total = strconv.Itoa(*p.Count)
		}
		fmt.Fprintf(&b, ";total=%s", total)
	}

	return b.String()
}

func encodeMonthSelector(b *strings.Builder, p Pattern) {
	if p.DayOfMonth > 0 {
		fmt.Fprintf(b, ";day=%d", p.DayOfMonth)
		return
	}
	fmt.Fprintf(b, ";week=%d;weekday=%d", int(p.WeekOfMonth), int(p.Weekday))
}

func encodeWeekdayFlags(set WeekdaySet) string {
	flags := make([]byte, 7)
	for i := range flags {
		if set[i] {
			flags[i] = '1'
		} else {
			flags[i] = '0'
		}
	}
	return string(flags)
}

// Parse rebuilds a pattern from its rule string. Bounds (start date, end
// date) are not part of the string; callers attach them with ApplyBounds
// before generating dates.
func Parse(rule string) (Pattern, error) {
	fields, err := splitRule(rule)
	if err != nil {
		return Pattern{}, err
	}

	typeValue, ok := fields["type"]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: missing type", ErrMalformedRule)
	}

	p := Pattern{Type: Type(typeValue), Interval: 1}

	if p.Type == TypeOnce {
		return p, nil
	}

	if raw, ok := fields["interval"]; ok {
		interval, err := strconv.Atoi(raw)
		if err != nil || interval < 1 {
			return Pattern{}, fmt.Errorf("%w: bad interval %q", ErrMalformedRule, raw)
		}
		p.Interval = interval
	}

	if raw, ok := fields["total"]; ok && raw != "" {
		total, err := strconv.Atoi(raw)
		if err != nil || total < 1 {
			return Pattern{}, fmt.Errorf("%w: bad total %q", ErrMalformedRule, raw)
		}
		p.Count = &total
	}

	switch p.Type {
	case TypeDaily:
		// No selector beyond the interval.
	case TypeWeekly:
		set, err := parseWeekdayFlags(fields["days"])
		if err != nil {
			return Pattern{}, err
		}
		p.Weekdays = set
	case TypeMonthly:
		if err := parseMonthSelector(fields, &p); err != nil {
			return Pattern{}, err
		}
	case TypeYearly:
		month, err := strconv.Atoi(fields["month"])
		if err != nil || month < 1 || month > 12 {
			return Pattern{}, fmt.Errorf("%w: bad month %q", ErrMalformedRule, fields["month"])
		}
		p.Month = time.Month(month)
		if err := parseMonthSelector(fields, &p); err != nil {
			return Pattern{}, err
		}
	default:
		return Pattern{}, fmt.Errorf("%w: unknown type %q", ErrMalformedRule, typeValue)
	}

	return p, nil
}

func splitRule(rule string) (map[string]string, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrMalformedRule)
	}
	fields := make(map[string]string)
	for _, pair := range strings.Split(rule, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: bad field %q", ErrMalformedRule, pair)
		}
		fields[key] = value
	}
	return fields, nil
}

func parseWeekdayFlags(flags string) (WeekdaySet, error) {
	var set WeekdaySet
	if len(flags) != 7 {
		return set, fmt.Errorf("%w: weekday flags must be 7 characters, got %q", ErrMalformedRule, flags)
	}
	for i, c := range flags {
		switch c {
		case '1':
			set[i] = true
		case '0':
		default:
			return WeekdaySet{}, fmt.Errorf("%w: weekday flags must be 0 or 1, got %q", ErrMalformedRule, flags)
		}
	}
	return set, nil
}

func parseMonthSelector(fields map[string]string, p *Pattern) error {
	if raw, ok := fields["day"]; ok {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 1 || day > 31 {
			return fmt.Errorf("%w: bad day-of-month %q", ErrMalformedRule, raw)
		}
		p.DayOfMonth = day
		return nil
	}

	week, err := strconv.Atoi(fields["week"])
	if err != nil || week < int(OrdinalFirst) || week > int(OrdinalLast) {
		return fmt.Errorf("%w: bad week-of-month %q", ErrMalformedRule, fields["week"])
	}
	weekday, err := strconv.Atoi(fields["weekday"])
	if err != nil || weekday < 0 || weekday > 6 {
		return fmt.Errorf("%w: bad weekday %q", ErrMalformedRule, fields["weekday"])
	}
	p.WeekOfMonth = Ordinal(week)
	p.Weekday = time.Weekday(weekday)
	return nil
}

// legacyRule is the deprecated nested serialization: one sub-structure per
// type with boolean flags. It is upgraded one way into the structured rule
// string; the reverse direction is intentionally unsupported.
type legacyRule struct {
	Total int              `json:"total,omitempty"`
	Day   *legacyDayRule   `json:"day,omitempty"`
	Week  *legacyWeekRule  `json:"week,omitempty"`
	Month *legacyMonthRule `json:"month,omitempty"`
	Year  *legacyYearRule  `json:"year,omitempty"`
}

type legacyDayRule struct {
	Interval int `json:"interval"`
}

type legacyWeekRule struct {
	Interval  int  `json:"interval"`
	Sunday    bool `json:"sunday"`
	Monday    bool `json:"monday"`
	Tuesday   bool `json:"tuesday"`
	Wednesday bool `json:"wednesday"`
	Thursday  bool `json:"thursday"`
	Friday    bool `json:"friday"`
	Saturday  bool `json:"saturday"`
}

type legacyMonthRule struct {
	Interval    int `json:"interval"`
	DayOfMonth  int `json:"dayOfMonth,omitempty"`
	WeekOfMonth int `json:"weekOfMonth,omitempty"`
	DayOfWeek   int `json:"dayOfWeek,omitempty"`
}

type legacyYearRule struct {
	Month       int `json:"month"`
	DayOfMonth  int `json:"dayOfMonth,omitempty"`
	WeekOfMonth int `json:"weekOfMonth,omitempty"`
	DayOfWeek   int `json:"dayOfWeek,omitempty"`
}

// UpgradeLegacy translates the deprecated nested rule document into the
// structured rule string. Exactly one per-type block must be present.
func UpgradeLegacy(document string) (string, error) {
	var legacy legacyRule
	if err := json.Unmarshal([]byte(document), &legacy); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}

	p := Pattern{Interval: 1}
	blocks := 0

	if legacy.Day != nil {
		blocks++
		p.Type = TypeDaily
		if legacy.Day.Interval > 0 {
			p.Interval = legacy.Day.Interval
		}
	}
	if legacy.Week != nil {
		blocks++
		p.Type = TypeWeekly
		if legacy.Week.Interval > 0 {
			p.Interval = legacy.Week.Interval
		}
		w := legacy.Week
		for day, set := range map[time.Weekday]bool{
			time.Sunday:    w.Sunday,
			time.Monday:    w.Monday,
			time.Tuesday:   w.Tuesday,
			time.Wednesday: w.Wednesday,
			time.Thursday:  w.Thursday,
			time.Friday:    w.Friday,
			time.Saturday:  w.Saturday,
		} {
			if set {
				p.Weekdays.Add(day)
			}
		}
	}
	if legacy.Month != nil {
		blocks++
		p.Type = TypeMonthly
		if legacy.Month.Interval > 0 {
			p.Interval = legacy.Month.Interval
		}
		p.DayOfMonth = legacy.Month.DayOfMonth
		p.WeekOfMonth = Ordinal(legacy.Month.WeekOfMonth)
		p.Weekday = time.Weekday(legacy.Month.DayOfWeek)
	}
	if legacy.Year != nil {
		blocks++
		p.Type = TypeYearly
		p.Month = time.Month(legacy.Year.Month)
		p.DayOfMonth = legacy.Year.DayOfMonth
		p.WeekOfMonth = Ordinal(legacy.Year.WeekOfMonth)
		p.Weekday = time.Weekday(legacy.Year.DayOfWeek)
	}

	if blocks == 0 {
		p.Type = TypeOnce
	} else if blocks > 1 {
		return "", fmt.Errorf("%w: legacy rule names %d type blocks", ErrMalformedRule, blocks)
	}

	if legacy.Total > 0 {
		total := legacy.Total
		p.Count = &total
	}

	return Encode(p), nil
}
