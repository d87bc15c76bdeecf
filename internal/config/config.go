package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"icsgen/internal/ics"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// YearPlaceholder in Output is replaced by the configured year.
const YearPlaceholder = "{year}"

var tzOffsetPattern = regexp.MustCompile(`^[+-](0\d|1[0-4])[0-5]\d$`)

// CalendarConfig describes the calendar-level fields of the generated document.
type CalendarConfig struct {
	// ProductID is written as PRODID.
	ProductID string `yaml:"product_id" json:"product_id"`
	// Name is the calendar display name (X-WR-CALNAME).
	Name string `yaml:"name" json:"name"`
	// Timezone is the IANA timezone id of the calendar (e.g. "Asia/Kolkata").
	Timezone string `yaml:"timezone" json:"timezone"`
	// TZOffset is the fixed UTC offset of Timezone in ±HHMM form. Only zones
	// without daylight saving can be described.
	TZOffset string `yaml:"tz_offset" json:"tz_offset"`
	// TZName is the timezone abbreviation (e.g. "IST").
	TZName string `yaml:"tz_name" json:"tz_name"`
	// UIDDomain is appended to every event UID after '@'.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`
}

// Config is the top-level application configuration.
type Config struct {
	// Year is applied to every parsed date; input lines only carry month-day.
	Year int `yaml:"year" json:"year"`

	// DataDir is the directory holding the sources. Relative paths are
	// resolved against the directory of the config file.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Sources lists the input files, relative to DataDir unless absolute.
	// They are read in this order.
	Sources []string `yaml:"sources" json:"sources"`

	// Output is the path of the generated .ics file. "{year}" is replaced by
	// Year. Relative paths are resolved against the config directory.
	Output string `yaml:"output" json:"output"`

	// LineEnding is "crlf" (default) or "lf".
	LineEnding string `yaml:"line_ending" json:"line_ending"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MetricsTextfile, if set, receives run metrics in Prometheus text format
	// (for node_exporter's textfile collector).
	MetricsTextfile string `yaml:"metrics_textfile,omitempty" json:"metrics_textfile,omitempty"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Year:    time.Now().Year(),
		DataDir: "data",
		Sources: []string{
			"ചന്ദ്ര " + YearPlaceholder + ".txt",
			"സൗര " + YearPlaceholder + ".txt",
			"നക്ഷത്ര " + YearPlaceholder + ".txt",
			"Julian.txt",
		},
		Output:     "കേരളാഘോഷങ്ങൾ_" + YearPlaceholder + ".ics",
		LineEnding: string(ics.LineEndingCRLF),
		LogLevel:   "info",
		Calendar: CalendarConfig{
			ProductID: "-//Malayalam Holidays//Calendar//ML",
			Name:      "സനാതനി ആഘോഷങ്ങൾ",
			Timezone:  "Asia/Kolkata",
			TZOffset:  "+0530",
			TZName:    "IST",
			UIDDomain: "malayalam",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Year == 0 {
		c.Year = def.Year
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Sources == nil {
		c.Sources = def.Sources
	}
	if c.Output == "" {
		c.Output = def.Output
	}
	c.LineEnding = strings.ToLower(strings.TrimSpace(c.LineEnding))
	if c.LineEnding == "" {
		c.LineEnding = def.LineEnding
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	cal := &c.Calendar
	if cal.ProductID == "" {
		cal.ProductID = def.Calendar.ProductID
	}
	if cal.Name == "" {
		cal.Name = def.Calendar.Name
	}
	// Offset and abbreviation only default together with the zone itself;
	// a custom zone with the Kolkata offset would be silently wrong.
	if cal.Timezone == "" {
		cal.Timezone = def.Calendar.Timezone
		if cal.TZOffset == "" {
			cal.TZOffset = def.Calendar.TZOffset
		}
		if cal.TZName == "" {
			cal.TZName = def.Calendar.TZName
		}
	}
	if cal.UIDDomain == "" {
		cal.UIDDomain = def.Calendar.UIDDomain
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Year < 1 || c.Year > 9999 {
		errs = append(errs, fmt.Errorf("year %d out of range 1..9999", c.Year))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("no sources configured"))
	}
	for i, s := range c.Sources {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("sources[%d] is empty", i))
		}
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if !ics.LineEnding(c.LineEnding).Valid() {
		errs = append(errs, fmt.Errorf("line_ending %q must be crlf or lf", c.LineEnding))
	}

	cal := c.Calendar
	if cal.Timezone == "" {
		errs = append(errs, errors.New("calendar.timezone is empty"))
	}
	if !tzOffsetPattern.MatchString(cal.TZOffset) {
		errs = append(errs, fmt.Errorf("calendar.tz_offset %q must look like +0530", cal.TZOffset))
	}
	if cal.TZName == "" {
		errs = append(errs, errors.New("calendar.tz_name is empty"))
	}
	if cal.UIDDomain == "" || strings.ContainsAny(cal.UIDDomain, "@ \t") {
		errs = append(errs, fmt.Errorf("calendar.uid_domain %q is not a valid domain", cal.UIDDomain))
	}

	return errors.Join(errs...)
}

// SourcePaths returns the configured sources as paths, in order. baseDir is
// the directory of the config file.
func (c *Config) SourcePaths(baseDir string) []string {
	dataDir := resolve(baseDir, c.DataDir)
	out := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, resolve(dataDir, c.expand(s)))
	}
	return out
}

// OutputPath returns the output file path with the year substituted.
func (c *Config) OutputPath(baseDir string) string {
	return resolve(baseDir, c.expand(c.Output))
}

func (c *Config) expand(s string) string {
	return strings.ReplaceAll(s, YearPlaceholder, strconv.Itoa(c.Year))
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".icsgen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
