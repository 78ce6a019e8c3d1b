package cron

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("time zone %q unavailable: %v", name, err)
	}
	return loc
}

func TestNext(t *testing.T) {
	base := time.Date(2026, 3, 4, 8, 30, 15, 0, time.UTC) // Wednesday

	tests := []struct {
		expr string
		from time.Time
		want time.Time
	}{
		{"0 9 * * *", base, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
		{"0 9 * * *", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", base, time.Date(2026, 3, 4, 8, 45, 0, 0, time.UTC)},
		{"30 8 * * *", base, time.Date(2026, 3, 5, 8, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", base, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"0 12 * * 1-5", time.Date(2026, 3, 6, 13, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)},
		{"0 12 * * 7", base, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)},
		{"0 6,18 * * *", base, time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)},
		{"5/20 * * * *", base, time.Date(2026, 3, 4, 8, 45, 0, 0, time.UTC)},
		// dom and dow both restricted: either matches.
		{"0 0 15 * 0", base, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)},
		{"0 0 29 2 *", base, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			s, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.expr, err)
			}
			got, err := s.Next(tc.from)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Next(%v) = %v, want %v", tc.from, got, tc.want)
			}
		})
	}
}

func TestNext_UsesLocation(t *testing.T) {
	loc := mustLoc(t, "America/Mexico_City")
	s := MustParse("0 9 * * *")

	from := time.Date(2026, 5, 10, 10, 0, 0, 0, loc)
	got, err := s.Next(from)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 5, 11, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}
}

func TestNext_Impossible(t *testing.T) {
	s := MustParse("0 0 30 2 *")
	if _, err := s.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected error for Feb 30")
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"0 9 * *",
		"0 9 * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"1-x * * * *",
	} {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q): expected error", expr)
		}
	}
}

func TestString(t *testing.T) {
	if got := MustParse("0 9 * * *").String(); got != "0 9 * * *" {
		t.Errorf("String() = %q", got)
	}
}
