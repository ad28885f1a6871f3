package censor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pdfcensor/classify"
	"pdfcensor/fields"
	"pdfcensor/filters"
	"pdfcensor/metadata"
	"pdfcensor/observability"
	"pdfcensor/parser"
	"pdfcensor/preserve"
	"pdfcensor/redact"
	"pdfcensor/writer"
)

// ErrUnreadable marks documents that cannot be opened at all: malformed
// beyond repair, or encrypted. Distinct from a failed verdict, which is a
// readable but ineligible document.
var ErrUnreadable = errors.New("unreadable document")

type Config struct {
	// IncludeInfo re-renders detected gender/age values onto the output.
	IncludeInfo bool
	// Matchers recognize the preservable fields; nil means the stock
	// Spanish vocabulary.
	Matchers []fields.Matcher
	// ContentFilter is handed to the writer for the rebuilt content
	// stream.
	ContentFilter string
	Limits        filters.Limits
	Parser        parser.Config
	Logger        observability.Logger
}

// DefaultConfig preserves fields and compresses output content.
func DefaultConfig() Config {
	return Config{
		IncludeInfo:   true,
		ContentFilter: "FlateDecode",
	}
}

// Result is the outcome for one document. Output is set only for an
// Eligible verdict; consumers must switch on Verdict before using it.
type Result struct {
	Verdict classify.Verdict
	Fields  []fields.Field
	Output  []byte
}

// Processor runs the per-document pipeline: classify, extract fields,
// redact, optionally re-insert the preserved fields, scrub metadata, and
// serialize. It holds no per-document state and is safe for concurrent use.
type Processor struct {
	cfg      Config
	matchers []fields.Matcher
	logger   observability.Logger
}

func NewProcessor(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	matchers := cfg.Matchers
	if matchers == nil {
		matchers = fields.Defaults()
	}
	return &Processor{cfg: cfg, matchers: matchers, logger: logger}
}

// Process censors one document. Failed verdicts come back as values with a
// nil Output; only a document that cannot be parsed returns an error.
func (pr *Processor) Process(ctx context.Context, r io.ReaderAt, regions []redact.Region) (*Result, error) {
	pipeline := filters.Default(pr.cfg.Limits)

	start := time.Now()
	doc, err := parser.New(pr.cfg.Parser).Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	pr.logger.Debug("document opened",
		observability.Int64(observability.MetricParseTime, time.Since(start).Milliseconds()),
		observability.Int("objects", len(doc.Objects)))

	cls, err := classify.Classify(ctx, doc, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if cls.Verdict != classify.Eligible {
		pr.logger.Info("document rejected",
			observability.String("verdict", cls.Verdict.String()),
			observability.Int("pages", cls.Pages))
		return &Result{Verdict: cls.Verdict}, nil
	}

	detected := fields.Detect(cls.Runs, pr.matchers)

	redactStart := time.Now()
	removed, err := redact.Apply(cls.Page, regions, pr.logger)
	if err != nil {
		return nil, fmt.Errorf("redacting: %w", err)
	}
	pr.logger.Debug("page redacted",
		observability.Int64(observability.MetricRedactTime, time.Since(redactStart).Milliseconds()),
		observability.Int("ops_removed", removed),
		observability.Int("fields", len(detected)))

	if err := preserve.Apply(doc, cls.Page, detected, pr.cfg.IncludeInfo); err != nil {
		return nil, fmt.Errorf("preserving fields: %w", err)
	}

	metadata.Scrub(doc)

	writeStart := time.Now()
	out, err := writer.New(writer.Config{ContentFilter: pr.cfg.ContentFilter}).Write(doc, cls.Page)
	if err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}
	pr.logger.Debug("document written",
		observability.Int64(observability.MetricWriteTime, time.Since(writeStart).Milliseconds()),
		observability.Int("bytes", len(out)))

	return &Result{Verdict: classify.Eligible, Fields: detected, Output: out}, nil
}
