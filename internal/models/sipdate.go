package models

import "time"

// sipExecutionHour is the hour of day at which scheduled executions land,
// matching the scheduler's daily tick.
const sipExecutionHour = 9

// NextSIPExecution returns the execution date one month after from, pinned
// to the plan's day of month. When the day exceeds the target month's length
// it clamps to the month's last day (a day-31 plan fires on Apr 30, not
// May 1).
func NextSIPExecution(from time.Time, dayOfMonth int) time.Time {
	year, month, _ := from.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}

	day := dayOfMonth
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, sipExecutionHour, 0, 0, 0, from.Location())
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
