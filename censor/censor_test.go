package censor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pdfcensor/classify"
	"pdfcensor/extract"
	"pdfcensor/filters"
	"pdfcensor/page"
	"pdfcensor/parser"
	"pdfcensor/redact"
)

// buildPDF assembles a classic-table file with one content stream per page.
func buildPDF(t *testing.T, info string, pageContents ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	offsets := map[int]int{}
	add := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.7\n")
	kids := make([]string, 0, len(pageContents))
	next := 3
	pageObjs := make([]int, 0, len(pageContents))
	for range pageContents {
		kids = append(kids, fmt.Sprintf("%d 0 R", next))
		pageObjs = append(pageObjs, next)
		next += 2
	}
	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	add(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pageContents)))
	for i, content := range pageContents {
		num := pageObjs[i]
		add(num, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", num+1))
		offsets[num+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", num+1, len(content), content)
	}
	infoNum := 0
	if info != "" {
		infoNum = next
		add(infoNum, info)
		next++
	}

	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", next)
	for num := 1; num < next; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	trailer := fmt.Sprintf("/Size %d /Root 1 0 R", next)
	if infoNum != 0 {
		trailer += fmt.Sprintf(" /Info %d 0 R", infoNum)
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xrefOff)
	return buf.Bytes()
}

const samplePage = "BT /F1 12 Tf 72 700 Td (Juan Perez) Tj 0 -40 Td (Masculino \\(34 a\\361os\\)) Tj ET"

const sampleInfo = "<< /Title (Historia clinica) /Author (Dra. Gomez) /Producer (OfficeWriter) /CreationDate (D:20240301) >>"

var nameRegion = []redact.Region{{X: 60, Y: 690, Width: 300, Height: 30}}

func outputText(t *testing.T, out []byte) string {
	t.Helper()
	ctx := context.Background()
	doc, err := parser.New(parser.Config{}).Parse(ctx, bytes.NewReader(out))
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	pg, err := page.First(ctx, doc, filters.Default(filters.Limits{}))
	if err != nil {
		t.Fatalf("reading output page: %v", err)
	}
	return extract.PageText(pg)
}

func TestProcessEligibleDocument(t *testing.T) {
	data := buildPDF(t, sampleInfo, samplePage)
	res, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), nameRegion)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Verdict != classify.Eligible {
		t.Fatalf("verdict: %v", res.Verdict)
	}
	if len(res.Output) == 0 {
		t.Fatalf("no output for eligible document")
	}
	if len(res.Fields) != 2 {
		t.Errorf("fields: %+v", res.Fields)
	}

	text := outputText(t, res.Output)
	if strings.Contains(text, "Juan Perez") {
		t.Errorf("redacted name extractable: %q", text)
	}
	if !strings.Contains(text, "Masculino") || !strings.Contains(text, "(34 años)") {
		t.Errorf("preserved fields missing: %q", text)
	}
}

func TestProcessFullPageRegion(t *testing.T) {
	data := buildPDF(t, sampleInfo, samplePage)
	full := []redact.Region{{X: 0, Y: 0, Width: 612, Height: 792}}
	res, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), full)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Verdict != classify.Eligible {
		t.Fatalf("verdict: %v", res.Verdict)
	}

	// everything on the page is redacted; only the preserved fields remain
	text := outputText(t, res.Output)
	if strings.Contains(text, "Juan Perez") {
		t.Errorf("redacted name extractable: %q", text)
	}
	if !strings.Contains(text, "Masculino") || !strings.Contains(text, "(34 años)") {
		t.Errorf("preserved fields missing: %q", text)
	}
}

func TestProcessScrubsMetadata(t *testing.T) {
	data := buildPDF(t, sampleInfo, samplePage)
	res, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, leak := range []string{"Historia clinica", "Dra. Gomez", "OfficeWriter", "D:20240301"} {
		if bytes.Contains(res.Output, []byte(leak)) {
			t.Errorf("metadata %q survived in output", leak)
		}
	}
	doc, err := parser.New(parser.Config{}).Parse(context.Background(), bytes.NewReader(res.Output))
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if doc.Metadata.Title != "" || doc.Metadata.Author != "" || doc.Metadata.Producer != "" {
		t.Errorf("output metadata: %+v", doc.Metadata)
	}
}

func TestProcessIncludeInfoFalse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeInfo = false
	// both field tokens sit inside the redaction region
	content := "BT /F1 12 Tf 72 700 Td (Femenino \\(41 a\\361os\\)) Tj ET"
	data := buildPDF(t, "", content)

	res, err := NewProcessor(cfg).Process(context.Background(), bytes.NewReader(data), nameRegion)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	text := outputText(t, res.Output)
	if strings.Contains(text, "Femenino") || strings.Contains(text, "41") {
		t.Errorf("fields rendered despite includeInfo=false: %q", text)
	}
}

func TestProcessPreservationOverridesRedaction(t *testing.T) {
	// fields inside the region must still reach the output when preserving
	content := "BT /F1 12 Tf 72 700 Td (Femenino \\(41 a\\361os\\)) Tj ET"
	data := buildPDF(t, "", content)

	res, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), nameRegion)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	text := outputText(t, res.Output)
	if !strings.Contains(text, "Femenino") || !strings.Contains(text, "(41 años)") {
		t.Errorf("preserved fields missing: %q", text)
	}
}

func TestProcessMultiPage(t *testing.T) {
	data := buildPDF(t, "", samplePage, samplePage, samplePage)
	res, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), nameRegion)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Verdict != classify.FailedMultiPage {
		t.Fatalf("verdict: %v", res.Verdict)
	}
	if res.Output != nil {
		t.Errorf("rejected document produced output")
	}
}

func TestProcessNoExtractableText(t *testing.T) {
	data := buildPDF(t, "", "q 612 0 0 792 0 0 cm /Im1 Do Q")
	res, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Verdict != classify.FailedNoExtractableText {
		t.Fatalf("verdict: %v", res.Verdict)
	}
}

func TestProcessMalformedDocument(t *testing.T) {
	_, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader([]byte("garbage, not a pdf")), nil)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("got %v, want ErrUnreadable", err)
	}
}

func TestProcessEncryptedDocument(t *testing.T) {
	data := buildPDF(t, "", samplePage)
	data = bytes.Replace(data,
		[]byte("/Root 1 0 R"),
		[]byte("/Root 1 0 R /Encrypt 1 0 R"), 1)
	_, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data), nil)
	if !errors.Is(err, ErrUnreadable) || !errors.Is(err, parser.ErrEncrypted) {
		t.Fatalf("got %v, want ErrUnreadable and ErrEncrypted", err)
	}
}

func TestProcessInvalidRegion(t *testing.T) {
	data := buildPDF(t, "", samplePage)
	_, err := NewProcessor(DefaultConfig()).Process(context.Background(), bytes.NewReader(data),
		[]redact.Region{{X: 1, Y: 1, Width: -5, Height: 5}})
	if !errors.Is(err, redact.ErrInvalidRegion) {
		t.Fatalf("got %v, want ErrInvalidRegion", err)
	}
	if errors.Is(err, ErrUnreadable) {
		t.Errorf("region error misclassified as unreadable")
	}
}
