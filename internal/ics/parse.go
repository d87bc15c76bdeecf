package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"icsgen/internal/model"
)

// Separator splits the date part from the event name on an input line.
const Separator = " : "

var (
	ErrInvalidFormat = errors.New("invalid line format")
	ErrInvalidDate   = errors.New("invalid date")
)

// LineError reports a single input line that was skipped.
type LineError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v: %q", e.Source, e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Parser turns "<month>-<day> : <name>" lines into events of a fixed year.
type Parser struct {
	// Year is applied to every parsed date; month and day come from the line.
	Year int
	// UIDDomain is the suffix after '@' in generated UIDs.
	UIDDomain string
}

// ParseLine parses one raw input line.
//
//   - Blank lines return ok == false and a nil error; they are not failures.
//   - Malformed lines return ok == false and an error wrapping
//     ErrInvalidFormat or ErrInvalidDate.
//
// The returned event has no provenance set; ReadSource fills it in.
func (p Parser) ParseLine(line string) (ev model.Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ev, false, nil
	}

	parts := strings.Split(line, Separator)
	if len(parts) != 2 {
		return ev, false, ErrInvalidFormat
	}

	month, day, err := parseMonthDay(parts[0])
	if err != nil {
		return ev, false, err
	}

	// Never empty: the line was trimmed, so the name ends in a non-space.
	name := strings.TrimSpace(parts[1])

	if !validDate(p.Year, month, day) {
		return ev, false, fmt.Errorf("%w: %d-%d does not exist in %d", ErrInvalidDate, month, day, p.Year)
	}

	start, end := model.AllDaySpan(p.Year, time.Month(month), day)
	ev = model.Event{
		Name:  name,
		UID:   EventUID(start, name, p.UIDDomain),
		Start: start,
		End:   end,
	}
	return ev, true, nil
}

// parseMonthDay splits "<month>-<day>" into two integers.
func parseMonthDay(s string) (int, int, error) {
	fields := strings.Split(strings.TrimSpace(s), "-")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: expected <month>-<day>, got %q", ErrInvalidDate, s)
	}
	month, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q is not a number", ErrInvalidDate, fields[0])
	}
	day, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: day %q is not a number", ErrInvalidDate, fields[1])
	}
	return month, day, nil
}

// validDate reports whether year-month-day names a real calendar day.
// time.Date normalizes overflow (Feb 30 -> Mar 2), so compare the result.
func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && t.Month() == time.Month(month) && t.Day() == day
}
