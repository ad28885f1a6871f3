package classify

import (
	"context"
	"fmt"

	"pdfcensor/extract"
	"pdfcensor/filters"
	"pdfcensor/ir/raw"
	"pdfcensor/page"
)

// Verdict is the eligibility decision for one document. Failed verdicts are
// normal values, not errors; only a document that cannot be read at all
// surfaces as an error.
type Verdict int

const (
	Eligible Verdict = iota
	FailedMultiPage
	FailedNoExtractableText
)

func (v Verdict) String() string {
	switch v {
	case Eligible:
		return "eligible"
	case FailedMultiPage:
		return "failed-multi-page"
	case FailedNoExtractableText:
		return "failed-no-extractable-text"
	default:
		return "unknown"
	}
}

// Classification bundles the verdict with the work classification already
// did, so an eligible document's page is not parsed twice.
type Classification struct {
	Verdict Verdict
	Pages   int
	Page    *page.Page
	Runs    []extract.TextRun
}

// Classify decides eligibility: exactly one page, and that page must carry
// extractable text. It never mutates the document.
func Classify(ctx context.Context, doc *raw.Document, pipeline *filters.Pipeline) (*Classification, error) {
	n, err := page.Count(doc)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}
	if n != 1 {
		return &Classification{Verdict: FailedMultiPage, Pages: n}, nil
	}

	p, err := page.First(ctx, doc, pipeline)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	runs := extract.Runs(p)
	if !hasVisibleText(runs) {
		return &Classification{Verdict: FailedNoExtractableText, Pages: 1, Page: p}, nil
	}
	return &Classification{Verdict: Eligible, Pages: 1, Page: p, Runs: runs}, nil
}

func hasVisibleText(runs []extract.TextRun) bool {
	for _, r := range runs {
		for _, c := range r.Text {
			if c > ' ' {
				return true
			}
		}
	}
	return false
}
