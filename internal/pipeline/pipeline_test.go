package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"icsgen/internal/config"
	"icsgen/internal/metric"
)

var runStamp = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Year = 2025
	cfg.Sources = []string{"lunar {year}.txt", "missing.txt", "solar.txt"}
	cfg.Output = "out/holidays_{year}.ics"
	cfg.LineEnding = "lf"
	return cfg
}

func seed(t *testing.T, fsys billy.Filesystem, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := util.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestRun(t *testing.T) {
	fsys := memfs.New()
	seed(t, fsys, map[string]string{
		"/cfg/data/lunar 2025.txt": "1-14 : Makaravilakku\n2-30 : Impossible\n\n8-15 : Independence Day\n",
		"/cfg/data/solar.txt":      "4-14 : Vishu\nnot an event\n12-31 : Year End\n",
	})

	m := metric.New()
	sum, err := Run(Options{
		FS:      fsys,
		Config:  testConfig(),
		BaseDir: "/cfg",
		Now:     runStamp,
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Summary{Sources: 3, Missing: 1, Events: 4, Skipped: 2, Output: "/cfg/out/holidays_2025.ics"}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	data, err := util.ReadFile(fsys, want.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}

	var names []string
	for _, ev := range cal.Events() {
		names = append(names, ev.GetProperty(ical.ComponentPropertySummary).Value)
	}
	wantNames := []string{"Makaravilakku", "Independence Day", "Vishu", "Year End"}
	if strings.Join(names, "|") != strings.Join(wantNames, "|") {
		t.Errorf("events = %v, want %v", names, wantNames)
	}
	if n := strings.Count(string(data), "DTSTAMP:20250301T100000Z\n"); n != 4 {
		t.Errorf("got %d DTSTAMP lines with the run stamp, want 4", n)
	}
	if bytes.Contains(data, []byte("\r\n")) {
		t.Error("lf line ending not honored")
	}

	mfs, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range mfs {
		for _, s := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range s.GetLabel() {
				key += "/" + lp.GetValue()
			}
			if c := s.GetCounter(); c != nil {
				got[key] = c.GetValue()
			}
			if g := s.GetGauge(); g != nil {
				got[key] = g.GetValue()
			}
		}
	}
	for key, v := range map[string]float64{
		"icsgen_sources_read_total":         2,
		"icsgen_sources_missing_total":      1,
		"icsgen_lines_parsed_total":         4,
		"icsgen_lines_skipped_total/date":   1,
		"icsgen_lines_skipped_total/format": 1,
		"icsgen_events_written":             4,
		"icsgen_last_run_success":           1,
	} {
		if got[key] != v {
			t.Errorf("%s = %v, want %v", key, got[key], v)
		}
	}
}

func TestRunNoSourcesFound(t *testing.T) {
	fsys := memfs.New()
	sum, err := Run(Options{FS: fsys, Config: testConfig(), BaseDir: "/cfg", Now: runStamp})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Missing != 3 || sum.Events != 0 {
		t.Errorf("summary = %+v", sum)
	}

	data, err := util.ReadFile(fsys, sum.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "BEGIN:VEVENT") {
		t.Error("empty run produced events")
	}
	if !strings.Contains(out, "BEGIN:VTIMEZONE\n") || !strings.HasSuffix(out, "END:VCALENDAR\n") {
		t.Errorf("incomplete empty calendar:\n%s", out)
	}
}

func TestRunStdout(t *testing.T) {
	fsys := memfs.New()
	seed(t, fsys, map[string]string{"/cfg/data/solar.txt": "8-15 : Independence Day\n"})

	cfg := testConfig()
	cfg.LineEnding = "crlf"

	var buf bytes.Buffer
	sum, err := Run(Options{FS: fsys, Config: cfg, BaseDir: "/cfg", Now: runStamp, Stdout: &buf})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Output != StdoutName || sum.Events != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.Contains(buf.String(), "SUMMARY:Independence Day\r\n") {
		t.Errorf("stdout missing event:\n%q", buf.String())
	}
	if _, err := fsys.Stat("/cfg/out"); err == nil {
		t.Error("output directory created in stdout mode")
	}
}

func TestRunUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "out")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := metric.New()
	_, err := Run(Options{
		FS:      osfs.New("/"),
		Config:  testConfig(),
		BaseDir: dir,
		Now:     runStamp,
		Metrics: m,
	})
	if err == nil {
		t.Fatal("expected error when output parent is a file")
	}
	if !strings.Contains(err.Error(), "holidays_2025.ics") {
		t.Errorf("error does not name the output: %v", err)
	}

	mfs, _ := m.Gatherer().Gather()
	for _, mf := range mfs {
		if mf.GetName() == "icsgen_last_run_success" && mf.GetMetric()[0].GetGauge().GetValue() != 0 {
			t.Error("failed run reported as success")
		}
	}
}

func TestRunNilConfig(t *testing.T) {
	if _, err := Run(Options{FS: memfs.New()}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
