package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/go-git/go-billy/v5"

	"icsgen/internal/model"
)

const (
	calendarVersion = "2.0"
	calendarScale   = "GREGORIAN"

	// timezoneEpoch is the DTSTART of the single STANDARD rule. The zone has
	// no daylight saving, so one rule from 1970 covers every event.
	timezoneEpoch = "19700101T000000"

	propXLicLocation = ical.ComponentProperty("X-LIC-LOCATION")
)

// LineEnding selects the content line terminator of the written document.
type LineEnding string

const (
	// LineEndingCRLF is what RFC 5545 mandates and the default.
	LineEndingCRLF LineEnding = "crlf"
	// LineEndingLF matches files produced by older versions of the tool.
	LineEndingLF LineEnding = "lf"
)

func (le LineEnding) newline() ical.WithNewLine {
	if le == LineEndingLF {
		return ical.WithNewLineUnix
	}
	return ical.WithNewLineWindows
}

// Valid reports whether le is a known line ending.
func (le LineEnding) Valid() bool {
	return le == LineEndingCRLF || le == LineEndingLF
}

// Header holds the calendar-level fields written before any event.
type Header struct {
	ProductID string
	// Name is the display name (X-WR-CALNAME).
	Name string
	// Timezone is the IANA id used for X-WR-TIMEZONE and the VTIMEZONE block.
	Timezone string
	// TZOffset is the fixed UTC offset of Timezone, e.g. "+0530".
	TZOffset string
	// TZName is the abbreviation written as TZNAME, e.g. "IST".
	TZName string
}

// Document is one complete calendar: header, timezone, events in order.
type Document struct {
	Header Header
	Events []model.Event
	// Stamp is the generation time, written as DTSTAMP on every event.
	// Callers capture it once per run.
	Stamp time.Time
}

// Calendar builds the iCalendar tree for the document. Properties are added
// in output order; Events is only read.
func (d Document) Calendar() *ical.Calendar {
	cal := &ical.Calendar{}
	cal.SetVersion(calendarVersion)
	cal.SetCalscale(calendarScale)
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(d.Header.ProductID)
	cal.SetXWRCalName(d.Header.Name)
	cal.SetXWRTimezone(d.Header.Timezone)

	tz := cal.AddTimezone(d.Header.Timezone)
	tz.SetProperty(propXLicLocation, d.Header.Timezone)
	std := tz.AddStandard()
	std.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), d.Header.TZOffset)
	std.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), d.Header.TZOffset)
	std.SetProperty(ical.ComponentProperty(ical.PropertyTzname), d.Header.TZName)
	std.SetProperty(ical.ComponentPropertyDtStart, timezoneEpoch)

	for _, ev := range d.Events {
		cal.AddVEvent(newVEvent(ev, d.Stamp))
	}
	return cal
}

// newVEvent starts from an empty component instead of ical.NewEvent, which
// would put UID first.
func newVEvent(ev model.Event, stamp time.Time) *ical.VEvent {
	ve := &ical.VEvent{}
	ve.SetAllDayStartAt(ev.Start)
	ve.SetAllDayEndAt(ev.End)
	ve.SetDtStampTime(stamp)
	ve.SetProperty(ical.ComponentPropertyUniqueId, ev.UID)
	ve.SetSummary(ev.Name)
	return ve
}

// Render returns the serialized document.
func (d Document) Render(le LineEnding) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Calendar().SerializeTo(&buf, le.newline()); err != nil {
		return nil, fmt.Errorf("serialize calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the whole document first and then writes it with a single
// call, so w never sees a half-built calendar from a serialization error.
func (d Document) Write(w io.Writer, le LineEnding) error {
	b, err := d.Render(le)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteFile writes the document to path, replacing any existing file.
//
// Implementation details:
//   - Ensures parent directory exists (0755).
//   - Writes to a hidden temp file (0644) in the same directory, then renames
//     over path.
//   - The temp file is removed on any error.
func WriteFile(fsys billy.Filesystem, path string, doc Document, le LineEnding) error {
	if path == "" {
		return errors.New("output path is empty")
	}

	b, err := doc.Render(le)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpName := filepath.Join(dir, "."+filepath.Base(path)+".tmp")
	tmp, err := fsys.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	// Ensure we clean up temp file on error.
	committed := false
	defer func() {
		if !committed {
			_ = fsys.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	committed = true
	return nil
}
