package main

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"icsgen/internal/config"
	appLog "icsgen/internal/log"
	"icsgen/internal/metric"
	"icsgen/internal/pipeline"
)

const version = "1.0.0"

// flagConfig holds CLI flag values; set flags override the config file.
type flagConfig struct {
	configPath string
	year       int
	out        string
	stdout     bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("icsgen starting", "version", version)

	configPath, err := filepath.Abs(flags.configPath)
	if err != nil {
		appLog.Error("failed to resolve config path", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	baseDir := filepath.Dir(configPath)

	conf, err := config.Load(configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		os.Exit(1)
	}

	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	if flags.year != 0 {
		conf.Year = flags.year
	}
	if flags.out != "" {
		// -out is relative to the working directory, not the config file.
		out, err := filepath.Abs(flags.out)
		if err != nil {
			appLog.Error("failed to resolve output path", err, "out", flags.out)
			os.Exit(1)
		}
		conf.Output = out
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"year", conf.Year,
		"data_dir", conf.DataDir,
		"sources", len(conf.Sources),
		"output", conf.OutputPath(baseDir),
		"line_ending", conf.LineEnding,
		"timezone", conf.Calendar.Timezone,
		"stdout", flags.stdout,
	)

	var m *metric.Run
	if conf.MetricsTextfile != "" {
		m = metric.New()
	}

	opts := pipeline.Options{
		FS:      osfs.New("/"),
		Config:  conf,
		BaseDir: baseDir,
		Now:     time.Now().UTC(),
		Metrics: m,
	}
	if flags.stdout {
		opts.Stdout = os.Stdout
	}

	sum, runErr := pipeline.Run(opts)

	if m != nil {
		path := conf.MetricsTextfile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := m.WriteTextfile(path); err != nil {
			appLog.Warn("failed to write metrics", "path", path, "err", err)
		}
	}

	if runErr != nil {
		appLog.Error("failed to create calendar", runErr, "output", sum.Output)
		os.Exit(1)
	}

	appLog.Info("calendar created", "path", sum.Output, "events", sum.Events)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "icsgen.yaml", "Path to config file (created with defaults if missing)")
	flag.IntVar(&cfg.year, "year", 0, "Calendar year (overrides config if set)")
	flag.StringVar(&cfg.out, "out", "", "Output .ics path (overrides config if set)")
	flag.BoolVar(&cfg.stdout, "stdout", false, "Write the calendar to stdout instead of a file")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
