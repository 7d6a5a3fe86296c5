package handlers

import (
	"testing"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := parseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("parseClock(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := formatClock(540); got != "09:00" {
		t.Fatalf("formatClock(540) = %q", got)
	}
	if got := formatClock(1439); got != "23:59" {
		t.Fatalf("formatClock(1439) = %q", got)
	}
}

func TestWeeklyRowFromItem(t *testing.T) {
	valid := weeklyDayItem{Weekday: 1, Start: "09:00", End: "17:00", IsAvailable: true}

	wa, err := weeklyRowFromItem("prac-1", "prov-1", valid)
	if err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}
	if wa.StartMinute != 540 || wa.EndMinute != 1020 || wa.HasBreak() {
		t.Fatalf("unexpected row: %+v", wa)
	}

	withBreak := valid
	withBreak.BreakStart = "12:00"
	withBreak.BreakEnd = "13:00"
	wa, err = weeklyRowFromItem("prac-1", "prov-1", withBreak)
	if err != nil {
		t.Fatalf("item with break rejected: %v", err)
	}
	if !wa.HasBreak() || *wa.BreakStartMinute != 720 || *wa.BreakEndMinute != 780 {
		t.Fatalf("unexpected break: %+v", wa)
	}

	closed := weeklyDayItem{Weekday: 0, IsAvailable: false}
	if _, err := weeklyRowFromItem("prac-1", "prov-1", closed); err != nil {
		t.Fatalf("closed day should not require times: %v", err)
	}

	invalid := []weeklyDayItem{
		{Weekday: 7, Start: "09:00", End: "17:00", IsAvailable: true},
		{Weekday: 1, Start: "17:00", End: "09:00", IsAvailable: true},
		{Weekday: 1, Start: "09:00", End: "09:00", IsAvailable: true},
		{Weekday: 1, Start: "late", End: "17:00", IsAvailable: true},
		{Weekday: 1, Start: "09:00", End: "17:00", BreakStart: "12:00", IsAvailable: true},
		{Weekday: 1, Start: "09:00", End: "17:00", BreakStart: "13:00", BreakEnd: "12:00", IsAvailable: true},
		{Weekday: 1, Start: "09:00", End: "17:00", BreakStart: "08:00", BreakEnd: "10:00", IsAvailable: true},
		{Weekday: 1, Start: "09:00", End: "17:00", BreakStart: "16:00", BreakEnd: "18:00", IsAvailable: true},
	}
	for i, item := range invalid {
		if _, err := weeklyRowFromItem("prac-1", "prov-1", item); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, item)
		}
	}
}
