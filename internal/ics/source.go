package ics

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	appLog "icsgen/internal/log"
	"icsgen/internal/model"
)

// maxLineBytes bounds a single input line; longer lines fail the source.
const maxLineBytes = 1 << 20

// SourceResult contains the outcome of reading a single input source.
type SourceResult struct {
	Path    string
	Events  []model.Event
	Skipped []*LineError
}

// SourceError reports a source that could not be read at all, or only partly.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Missing reports whether the source does not exist.
func (e *SourceError) Missing() bool {
	return errors.Is(e.Err, fs.ErrNotExist)
}

// ReadSources reads all given sources in order and returns individual results.
// Errors for individual sources are logged and returned in the error slice.
//
// The returned slice of results only contains entries for sources that could
// be opened; a source failing midway still contributes the events read so far.
func (p Parser) ReadSources(fsys billy.Basic, paths []string) ([]SourceResult, []error) {
	results := make([]SourceResult, 0, len(paths))
	errs := make([]error, 0)

	for _, path := range paths {
		res, err := p.ReadSource(fsys, path)
		if err != nil {
			errs = append(errs, err)
			var se *SourceError
			if errors.As(err, &se) && se.Missing() {
				appLog.Warn("source not found, skipping", "path", path)
			} else {
				appLog.Warn("source read failed", "path", path, "err", err)
			}
			if res.Path == "" {
				continue
			}
		}
		results = append(results, res)
	}

	return results, errs
}

// ReadSource parses every line of one UTF-8 text source, top to bottom.
// A leading byte order mark is dropped. Bad lines are logged, recorded in
// SourceResult.Skipped and do not stop the scan.
func (p Parser) ReadSource(fsys billy.Basic, path string) (SourceResult, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return SourceResult{}, &SourceError{Path: path, Err: err}
	}
	defer f.Close()

	res := SourceResult{Path: path}

	r := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := sc.Text()

		ev, ok, perr := p.ParseLine(text)
		if perr != nil {
			le := &LineError{Source: path, Line: lineNo, Text: text, Err: perr}
			res.Skipped = append(res.Skipped, le)
			appLog.Warn("skipped line", "source", path, "line", lineNo, "text", text, "reason", perr)
			continue
		}
		if !ok {
			continue
		}
		ev.Source = path
		ev.Line = lineNo
		res.Events = append(res.Events, ev)
	}
	if err := sc.Err(); err != nil {
		return res, &SourceError{Path: path, Err: fmt.Errorf("line %d: %w", lineNo+1, err)}
	}

	appLog.Debug("source parsed", "path", path, "events", len(res.Events), "skipped", len(res.Skipped))
	return res, nil
}
