package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfcensor/censor"
	"pdfcensor/classify"
	"pdfcensor/observability"
	"pdfcensor/redact"
)

const (
	censoredDirName = "Censored PDFs"
	failedDirName   = "Failed"
	censoredSuffix  = "_censored.pdf"
)

type Config struct {
	// Workers bounds parallel document processing; documents are
	// independent, so any bound is safe. Zero means 4.
	Workers int
	// OutputDir overrides the default "Censored PDFs" folder next to the
	// input.
	OutputDir string
	// Regions are applied to every document in the run.
	Regions []redact.Region
	// ReportPath, when set, receives an HTML run report.
	ReportPath string
	Processor  *censor.Processor
	Logger     observability.Logger
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Input   string
	Output  string
	Verdict classify.Verdict
	Fields  int
	Err     error
}

// Rejected reports whether the file went to the Failed folder.
func (r FileResult) Rejected() bool {
	return r.Err != nil || r.Verdict != classify.Eligible
}

// Summary aggregates a run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []FileResult
}

func (s *Summary) Processed() int {
	n := 0
	for _, r := range s.Results {
		if !r.Rejected() {
			n++
		}
	}
	return n
}

func (s *Summary) Failed() int { return len(s.Results) - s.Processed() }

// Runner routes documents through the processor and partitions outputs
// into the censored and failed folders.
type Runner struct {
	cfg       Config
	processor *censor.Processor
	logger    observability.Logger
}

func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	processor := cfg.Processor
	if processor == nil {
		processor = censor.NewProcessor(censor.DefaultConfig())
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Runner{cfg: cfg, processor: processor, logger: logger}
}

// RunFile processes a single document.
func (r *Runner) RunFile(ctx context.Context, path string) (*Summary, error) {
	outDir, err := r.ensureDirs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	summary := r.newSummary()
	summary.Results = append(summary.Results, r.processOne(ctx, path, outDir))
	summary.Finished = time.Now()
	return r.finish(summary)
}

// RunFolder processes every .pdf directly inside dir. Per-document
// failures are recorded, never fatal.
func (r *Runner) RunFolder(ctx context.Context, dir string) (*Summary, error) {
	inputs, err := listPDFs(dir)
	if err != nil {
		return nil, err
	}
	outDir, err := r.ensureDirs(dir)
	if err != nil {
		return nil, err
	}

	summary := r.newSummary()
	results := make([]FileResult, len(inputs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.processOne(ctx, inputs[i], outDir)
			}
		}()
	}
dispatch:
	for i := range inputs {
		select {
		case <-ctx.Done():
			// remaining inputs are recorded as cancelled, not silently skipped
			for j := i; j < len(inputs); j++ {
				results[j] = FileResult{Input: inputs[j], Err: ctx.Err()}
			}
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	summary.Results = results
	summary.Finished = time.Now()
	return r.finish(summary)
}

func (r *Runner) newSummary() *Summary {
	return &Summary{RunID: uuid.NewString(), Started: time.Now()}
}

func (r *Runner) finish(summary *Summary) (*Summary, error) {
	r.logger.Info("run finished",
		observability.String("run_id", summary.RunID),
		observability.Int(observability.MetricDocsProcessed, summary.Processed()),
		observability.Int(observability.MetricDocsFailed, summary.Failed()))
	if r.cfg.ReportPath != "" {
		if err := WriteReport(r.cfg.ReportPath, summary); err != nil {
			return summary, fmt.Errorf("writing report: %w", err)
		}
	}
	return summary, nil
}

// processOne runs the pipeline for one file and routes the outcome. A
// rejected or unreadable input is copied untouched into the Failed folder.
func (r *Runner) processOne(ctx context.Context, path, outDir string) FileResult {
	result := FileResult{Input: path}
	logger := r.logger.With(observability.String("file", filepath.Base(path)))

	data, err := os.ReadFile(path)
	if err != nil {
		result.Err = fmt.Errorf("reading input: %w", err)
		logger.Error("input unreadable", observability.Error("error", result.Err))
		return result
	}

	res, err := r.processor.Process(ctx, bytes.NewReader(data), r.cfg.Regions)
	if err != nil {
		result.Err = err
		logger.Error("processing failed", observability.Error("error", err))
		r.routeFailed(path, data, outDir, logger)
		return result
	}
	result.Verdict = res.Verdict
	result.Fields = len(res.Fields)

	if res.Verdict != classify.Eligible {
		logger.Info("document rejected", observability.String("verdict", res.Verdict.String()))
		r.routeFailed(path, data, outDir, logger)
		return result
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(outDir, base+censoredSuffix)
	if err := os.WriteFile(outPath, res.Output, 0o644); err != nil {
		result.Err = fmt.Errorf("writing output: %w", err)
		logger.Error("output not written", observability.Error("error", result.Err))
		return result
	}
	result.Output = outPath
	logger.Info("document censored",
		observability.Int("fields", result.Fields),
		observability.Int("bytes", len(res.Output)))
	return result
}

// routeFailed copies the untouched input into the Failed folder. A copy
// failure is logged but does not change the result; the original is still
// in place.
func (r *Runner) routeFailed(path string, data []byte, outDir string, logger observability.Logger) {
	dst := filepath.Join(outDir, failedDirName, filepath.Base(path))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		logger.Warn("failed copy not written", observability.Error("error", err))
	}
}

func (r *Runner) ensureDirs(baseDir string) (string, error) {
	outDir := r.cfg.OutputDir
	if outDir == "" {
		outDir = filepath.Join(baseDir, censoredDirName)
	}
	if err := os.MkdirAll(filepath.Join(outDir, failedDirName), 0o755); err != nil {
		return "", fmt.Errorf("creating output folders: %w", err)
	}
	return outDir, nil
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing input folder: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, errors.New("no PDF files in input folder")
	}
	return out, nil
}
