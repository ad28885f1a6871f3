package batch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"pdfcensor/classify"
)

// WriteReport renders the run summary as an HTML file. The summary is
// composed as Markdown and converted, so the same text also reads fine in
// a terminal or commit message.
func WriteReport(path string, summary *Summary) error {
	md := reportMarkdown(summary)

	var html bytes.Buffer
	converter := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := converter.Convert(md, &html); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return os.WriteFile(path, html.Bytes(), 0o644)
}

func reportMarkdown(summary *Summary) []byte {
	var md bytes.Buffer
	fmt.Fprintf(&md, "# Censoring run %s\n\n", summary.RunID)
	fmt.Fprintf(&md, "Started %s, finished %s.\n\n",
		summary.Started.Format("2006-01-02 15:04:05"),
		summary.Finished.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&md, "**%d processed**, **%d failed**.\n\n", summary.Processed(), summary.Failed())

	md.WriteString("| File | Outcome | Fields |\n|---|---|---|\n")
	for _, r := range summary.Results {
		fmt.Fprintf(&md, "| %s | %s | %d |\n", filepath.Base(r.Input), outcome(r), r.Fields)
	}
	return md.Bytes()
}

func outcome(r FileResult) string {
	switch {
	case r.Err != nil:
		return "error: " + r.Err.Error()
	case r.Verdict != classify.Eligible:
		return r.Verdict.String()
	default:
		return "censored"
	}
}
