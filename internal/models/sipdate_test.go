package models

import (
	"testing"
	"time"
)

func TestNextSIPExecution(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		day  int
		want time.Time
	}{
		{
			name: "plain next month",
			from: time.Date(2026, time.January, 15, 14, 30, 0, 0, time.UTC),
			day:  15,
			want: time.Date(2026, time.February, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "day 31 clamps to 30-day month",
			from: time.Date(2026, time.March, 31, 9, 0, 0, 0, time.UTC),
			day:  31,
			want: time.Date(2026, time.April, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "day 31 clamps to february",
			from: time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC),
			day:  31,
			want: time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "leap year february",
			from: time.Date(2028, time.January, 30, 9, 0, 0, 0, time.UTC),
			day:  30,
			want: time.Date(2028, time.February, 29, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "unclamps back to day after short month",
			from: time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC),
			day:  31,
			want: time.Date(2026, time.March, 31, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "december rolls into january",
			from: time.Date(2026, time.December, 10, 9, 0, 0, 0, time.UTC),
			day:  10,
			want: time.Date(2027, time.January, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextSIPExecution(tt.from, tt.day)
			if !got.Equal(tt.want) {
				t.Errorf("NextSIPExecution(%v, %d) = %v, want %v", tt.from, tt.day, got, tt.want)
			}
		})
	}
}

func TestNextSIPExecutionAlwaysAdvances(t *testing.T) {
	from := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		next := NextSIPExecution(from, 31)
		if !next.After(from) {
			t.Fatalf("execution date did not advance: %v -> %v", from, next)
		}
		from = next
	}
}
