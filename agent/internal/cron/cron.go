package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// searchLimit bounds Next so impossible schedules (Feb 30) terminate.
const searchLimit = 4 * 366 * 24 * time.Hour

// Schedule is a parsed cron expression.
type Schedule struct {
	expr   string
	minute bits
	hour   bits
	dom    bits
	month  bits
	dow    bits

	// domAny and dowAny record wildcard day fields for the OR rule.
	domAny bool
	dowAny bool
}

type bits uint64

func (b bits) has(v int) bool { return b&(1<<uint(v)) != 0 }

type fieldSpec struct {
	name     string
	min, max int
}

var fields = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// Parse parses a 5-field cron expression.
func Parse(expr string) (Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(fields) {
		return Schedule{}, fmt.Errorf("cron: %q: expected 5 fields, got %d", expr, len(parts))
	}

	var parsed [5]bits
	for i, spec := range fields {
		b, err := parseField(parts[i], spec.min, spec.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %q: %s field: %w", expr, spec.name, err)
		}
		parsed[i] = b
	}

	dow := parsed[4]
	if dow.has(7) {
		dow |= 1
		dow &^= 1 << 7
	}

	return Schedule{
		expr:   expr,
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    dow,
		domAny: parts[2] == "*",
		dowAny: parts[4] == "*",
	}, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(expr string) Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the expression the schedule was parsed from.
func (s Schedule) String() string { return s.expr }

// Next returns the first matching minute strictly after t, in t's location.
func (s Schedule) Next(t time.Time) (time.Time, error) {
	loc := t.Location()
	start := t
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := start.Add(searchLimit)

	for t.Before(limit) {
		if !s.month.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cron: %q: no match within 4 years of %s", s.expr, start.Format(time.RFC3339))
}

func (s Schedule) dayMatches(t time.Time) bool {
	domOK := s.dom.has(t.Day())
	dowOK := s.dow.has(int(t.Weekday()))
	if !s.domAny && !s.dowAny {
		return domOK || dowOK
	}
	return domOK && dowOK
}

func parseField(field string, min, max int) (bits, error) {
	var out bits
	for _, term := range strings.Split(field, ",") {
		b, err := parseTerm(term, min, max)
		if err != nil {
			return 0, err
		}
		out |= b
	}
	return out, nil
}

// parseTerm handles *, */N, V, V-W and V-W/N.
func parseTerm(term string, min, max int) (bits, error) {
	rng, stepStr, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepStr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step %q", stepStr)
		}
		step = n
	}

	lo, hi := min, max
	switch {
	case rng == "*":
	case strings.Contains(rng, "-"):
		a, b, _ := strings.Cut(rng, "-")
		var err error
		if lo, err = strconv.Atoi(a); err != nil {
			return 0, fmt.Errorf("invalid range start %q", a)
		}
		if hi, err = strconv.Atoi(b); err != nil {
			return 0, fmt.Errorf("invalid range end %q", b)
		}
		if lo > hi {
			return 0, fmt.Errorf("range %d-%d is reversed", lo, hi)
		}
	default:
		v, err := strconv.Atoi(rng)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", rng)
		}
		lo, hi = v, v
		if hasStep {
			hi = max
		}
	}

	if lo < min || hi > max {
		return 0, fmt.Errorf("%d-%d outside [%d-%d]", lo, hi, min, max)
	}

	var out bits
	for v := lo; v <= hi; v += step {
		out |= 1 << uint(v)
	}
	return out, nil
}
