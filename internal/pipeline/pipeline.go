package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-billy/v5"

	"icsgen/internal/config"
	"icsgen/internal/ics"
	appLog "icsgen/internal/log"
	"icsgen/internal/metric"
	"icsgen/internal/model"
)

// StdoutName is reported as Summary.Output when the calendar went to a stream.
const StdoutName = "-"

// Options configures a single conversion run.
type Options struct {
	// FS resolves sources and the output file.
	FS billy.Filesystem
	// Config must already be normalized.
	Config *config.Config
	// BaseDir is the directory relative config paths are resolved against.
	BaseDir string
	// Now is stamped into every event. Zero means time.Now().
	Now time.Time
	// Stdout, if non-nil, receives the calendar instead of the output file.
	Stdout io.Writer
	// Metrics is optional.
	Metrics *metric.Run
}

// Summary describes what a run did.
type Summary struct {
	Sources int // configured sources
	Missing int // sources that could not be opened or read
	Events  int
	Skipped int // malformed lines
	Output  string
}

// Run reads every configured source in order and writes one calendar
// containing all parsed events. Missing sources and malformed lines are
// logged and counted; only a failure to produce the output is an error.
func Run(opts Options) (Summary, error) {
	var sum Summary

	cfg := opts.Config
	if cfg == nil {
		return sum, errors.New("pipeline: config is nil")
	}
	if opts.FS == nil {
		return sum, errors.New("pipeline: filesystem is nil")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	parser := ics.Parser{Year: cfg.Year, UIDDomain: cfg.Calendar.UIDDomain}
	paths := cfg.SourcePaths(opts.BaseDir)
	sum.Sources = len(paths)

	results, errs := parser.ReadSources(opts.FS, paths)

	sum.Missing = len(errs)
	for range errs {
		opts.Metrics.SourceMissing()
	}

	var events []model.Event
	for _, res := range results {
		opts.Metrics.SourceRead()
		opts.Metrics.LinesParsed(len(res.Events))
		for _, le := range res.Skipped {
			opts.Metrics.LineSkipped(skipReason(le))
		}
		sum.Skipped += len(res.Skipped)
		events = append(events, res.Events...)
	}
	sum.Events = len(events)

	doc := ics.Document{
		Header: Header(cfg),
		Events: events,
		Stamp:  now,
	}
	le := ics.LineEnding(cfg.LineEnding)

	var err error
	if opts.Stdout != nil {
		sum.Output = StdoutName
		if werr := doc.Write(opts.Stdout, le); werr != nil {
			err = fmt.Errorf("write calendar to stdout: %w", werr)
		}
	} else {
		sum.Output = cfg.OutputPath(opts.BaseDir)
		if werr := ics.WriteFile(opts.FS, sum.Output, doc, le); werr != nil {
			err = fmt.Errorf("write calendar %s: %w", sum.Output, werr)
		}
	}

	opts.Metrics.Finished(sum.Events, now, err == nil)
	if err != nil {
		return sum, err
	}

	appLog.Info("run finished",
		"sources", sum.Sources,
		"missing", sum.Missing,
		"events", sum.Events,
		"skipped", sum.Skipped,
		"output", sum.Output,
	)
	return sum, nil
}

// Header maps the calendar section of cfg onto the document header.
func Header(cfg *config.Config) ics.Header {
	return ics.Header{
		ProductID: cfg.Calendar.ProductID,
		Name:      cfg.Calendar.Name,
		Timezone:  cfg.Calendar.Timezone,
		TZOffset:  cfg.Calendar.TZOffset,
		TZName:    cfg.Calendar.TZName,
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ics.ErrInvalidDate):
		return "date"
	case errors.Is(err, ics.ErrInvalidFormat):
		return "format"
	default:
		return "other"
	}
}
