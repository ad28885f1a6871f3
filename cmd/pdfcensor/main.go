package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pdfcensor/batch"
	"pdfcensor/censor"
	"pdfcensor/fields"
	"pdfcensor/observability"
	"pdfcensor/redact"
)

type options struct {
	file        string
	folder      string
	output      string
	regionsPath string
	matchScript string
	report      string
	workers     int
	noInfo      bool
	verbose     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfcensor: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfcensor: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfcensor (--file <pdf> | --folder <dir>) --regions <json> [flags]\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.file, "file", "", "Censor a single PDF")
	flag.StringVar(&opts.folder, "folder", "", "Censor every PDF in a folder")
	flag.StringVar(&opts.output, "output", "", "Output folder (default: \"Censored PDFs\" next to the input)")
	flag.StringVar(&opts.regionsPath, "regions", "", "JSON file with redaction rectangles")
	flag.StringVar(&opts.matchScript, "match-script", "", "JavaScript file overriding the gender matcher")
	flag.StringVar(&opts.report, "report", "", "Write an HTML run report to this path")
	flag.IntVar(&opts.workers, "workers", 0, "Parallel documents when processing a folder")
	flag.BoolVar(&opts.noInfo, "no-info", false, "Do not re-insert the detected gender/age values")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Parse()

	if (opts.file == "") == (opts.folder == "") {
		flag.Usage()
		return options{}, fmt.Errorf("exactly one of --file or --folder is required")
	}
	return opts, nil
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := observability.LevelInfo
	if opts.verbose {
		level = observability.LevelDebug
	}
	logger := observability.NewTextLogger(os.Stderr, level)

	regions, err := loadRegions(opts.regionsPath)
	if err != nil {
		return err
	}

	cfg := censor.DefaultConfig()
	cfg.IncludeInfo = !opts.noInfo
	cfg.Logger = logger
	if opts.matchScript != "" {
		src, err := os.ReadFile(opts.matchScript)
		if err != nil {
			return fmt.Errorf("reading match script: %w", err)
		}
		gender, err := fields.NewScriptMatcher(fields.KindGender, string(src))
		if err != nil {
			return err
		}
		cfg.Matchers = []fields.Matcher{gender, fields.AgeMatcher()}
	}

	runner := batch.NewRunner(batch.Config{
		Workers:    opts.workers,
		OutputDir:  opts.output,
		Regions:    regions,
		ReportPath: opts.report,
		Processor:  censor.NewProcessor(cfg),
		Logger:     logger,
	})

	var summary *batch.Summary
	if opts.file != "" {
		summary, err = runner.RunFile(ctx, opts.file)
	} else {
		summary, err = runner.RunFolder(ctx, opts.folder)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d censored, %d failed\n", summary.RunID, summary.Processed(), summary.Failed())
	for _, r := range summary.Results {
		if r.Rejected() {
			fmt.Printf("  failed: %s\n", filepath.Base(r.Input))
		}
	}
	return nil
}

// loadRegions reads the rectangle sidecar. No file means no redaction
// regions, which still scrubs metadata and classifies.
func loadRegions(path string) ([]redact.Region, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading regions: %w", err)
	}
	var regions []redact.Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("parsing regions: %w", err)
	}
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return regions, nil
}
