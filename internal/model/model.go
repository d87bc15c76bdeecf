package model

import "time"

// Event represents a single all-day occurrence read from one input line.
// Values are built once by the parser and never mutated afterwards.
type Event struct {
	Name string
	UID  string

	// Start is the event date at 00:00 UTC. End is the exclusive end,
	// always exactly one calendar day after Start.
	Start time.Time
	End   time.Time

	// Provenance, for logging only.
	Source string
	Line   int
}

// AllDaySpan returns the [date, next day) span for the given calendar date.
// The day is added with AddDate so month and year boundaries roll over.
func AllDaySpan(year int, month time.Month, day int) (time.Time, time.Time) {
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
