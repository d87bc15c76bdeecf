package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	appLog "icsgen/internal/log"
)

// Run holds the counters of a single conversion run. The collectors live on a
// private registry so the output contains only icsgen series, ready for
// node_exporter's textfile collector.
//
// All methods are safe to call on a nil *Run.
type Run struct {
	reg *prometheus.Registry

	sourcesRead    prometheus.Counter
	sourcesMissing prometheus.Counter
	linesParsed    prometheus.Counter
	linesSkipped   *prometheus.CounterVec
	eventsWritten  prometheus.Gauge
	lastRun        prometheus.Gauge
	success        prometheus.Gauge
}

func New() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	r := &Run{
		reg: reg,
		sourcesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "icsgen_sources_read_total",
			Help: "Number of source files read",
		}),
		sourcesMissing: f.NewCounter(prometheus.CounterOpts{
			Name: "icsgen_sources_missing_total",
			Help: "Number of source files that could not be opened or read",
		}),
		linesParsed: f.NewCounter(prometheus.CounterOpts{
			Name: "icsgen_lines_parsed_total",
			Help: "Number of input lines that produced an event",
		}),
		linesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "icsgen_lines_skipped_total",
			Help: "Number of malformed input lines, by reason",
		}, []string{"reason"}),
		eventsWritten: f.NewGauge(prometheus.GaugeOpts{
			Name: "icsgen_events_written",
			Help: "Number of events in the last generated calendar",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "icsgen_last_run_timestamp_seconds",
			Help: "Unix time of the last run",
		}),
		success: f.NewGauge(prometheus.GaugeOpts{
			Name: "icsgen_last_run_success",
			Help: "1 if the last run wrote its calendar, 0 otherwise",
		}),
	}
	return r
}

func (r *Run) SourceRead() {
	if r == nil {
		return
	}
	r.sourcesRead.Inc()
}

func (r *Run) SourceMissing() {
	if r == nil {
		return
	}
	r.sourcesMissing.Inc()
}

func (r *Run) LinesParsed(n int) {
	if r == nil {
		return
	}
	r.linesParsed.Add(float64(n))
}

// LineSkipped counts one malformed line. reason is a short label such as
// "format" or "date".
func (r *Run) LineSkipped(reason string) {
	if r == nil {
		return
	}
	r.linesSkipped.WithLabelValues(reason).Inc()
}

// Finished records the outcome of the run.
func (r *Run) Finished(events int, at time.Time, ok bool) {
	if r == nil {
		return
	}
	r.eventsWritten.Set(float64(events))
	r.lastRun.Set(float64(at.Unix()))
	if ok {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
}

// Gatherer exposes the private registry.
func (r *Run) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// WriteTextfile writes all series to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Run) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return err
	}
	appLog.Debug("metrics written", "path", path)
	return nil
}
