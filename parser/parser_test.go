package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdfcensor/ir/raw"
)

// docBuilder assembles a classic-table PDF object by object.
type docBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
	maxNum  int
}

func newDocBuilder() *docBuilder {
	b := &docBuilder{offsets: map[int]int64{}}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

func (b *docBuilder) add(num int, body string) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	if num > b.maxNum {
		b.maxNum = num
	}
}

func (b *docBuilder) addStream(num int, dict string, data []byte) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nstream\n", num, dict)
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
	if num > b.maxNum {
		b.maxNum = num
	}
}

func (b *docBuilder) finish(trailerExtra string) []byte {
	xrefOff := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", b.maxNum+1)
	for num := 1; num <= b.maxNum; num++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", b.offsets[num])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R %s >>\nstartxref\n%d\n%%%%EOF\n",
		b.maxNum+1, trailerExtra, xrefOff)
	return b.buf.Bytes()
}

func parseDoc(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := New(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParseMinimalDocument(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.add(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	doc := parseDoc(t, b.finish(""))

	if doc.Version != "1.7" {
		t.Errorf("version: got %q, want 1.7", doc.Version)
	}
	root, ok := doc.Root()
	if !ok || root.Num != 1 {
		t.Fatalf("root: got %v ok=%v", root, ok)
	}
	catalog := doc.ResolveDict(raw.Ref(1, 0))
	if catalog == nil || catalog.Name("Type") != "Catalog" {
		t.Fatalf("catalog not loaded: %v", catalog)
	}
	page := doc.ResolveDict(raw.Ref(3, 0))
	if page == nil || page.Name("Type") != "Page" {
		t.Fatalf("page not loaded: %v", page)
	}
}

func TestParseStreamWithDirectLength(t *testing.T) {
	payload := []byte("BT /F1 12 Tf (Hello) Tj ET")
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.addStream(3, fmt.Sprintf("<< /Length %d >>", len(payload)), payload)
	doc := parseDoc(t, b.finish(""))

	stream, ok := doc.Resolve(raw.Ref(3, 0)).(*raw.StreamObj)
	if !ok {
		t.Fatalf("object 3 is not a stream")
	}
	if !bytes.Equal(stream.Data, payload) {
		t.Errorf("stream data: got %q, want %q", stream.Data, payload)
	}
}

func TestParseStreamWithIndirectLength(t *testing.T) {
	payload := []byte("q 0 0 0 rg 10 10 100 50 re f Q")
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.addStream(3, "<< /Length 4 0 R >>", payload)
	b.add(4, fmt.Sprintf("%d", len(payload)))
	doc := parseDoc(t, b.finish(""))

	stream, ok := doc.Resolve(raw.Ref(3, 0)).(*raw.StreamObj)
	if !ok {
		t.Fatalf("object 3 is not a stream")
	}
	if !bytes.Equal(stream.Data, payload) {
		t.Errorf("stream data: got %q, want %q", stream.Data, payload)
	}
}

func TestParseEncryptedDocument(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.add(3, "<< /Filter /Standard /V 2 >>")
	data := b.finish("/Encrypt 3 0 R")

	_, err := New(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if !errors.Is(err, ErrEncrypted) {
		t.Fatalf("got %v, want ErrEncrypted", err)
	}
}

func TestParseInfoMetadata(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.add(3, "<< /Title (Informe) /Author (Ana) /Producer (pdfcensor) /Department (RRHH) >>")
	doc := parseDoc(t, b.finish("/Info 3 0 R"))

	want := raw.DocumentMetadata{
		Title:    "Informe",
		Author:   "Ana",
		Producer: "pdfcensor",
		Custom:   map[string]string{"Department": "RRHH"},
	}
	if diff := cmp.Diff(want, doc.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if doc.InfoRef.Num != 3 {
		t.Errorf("info ref: %v", doc.InfoRef)
	}
}

func TestParseUTF16TitleDecodes(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	// FE FF BOM followed by UTF-16BE "Año"
	b.add(3, "<< /Title <FEFF004100F1006F> >>")
	doc := parseDoc(t, b.finish("/Info 3 0 R"))

	if doc.Metadata.Title != "Año" {
		t.Errorf("title: got %q, want %q", doc.Metadata.Title, "Año")
	}
}

func TestParseMissingHeader(t *testing.T) {
	_, err := New(Config{}).Parse(context.Background(), bytes.NewReader([]byte("not a pdf")))
	if err == nil {
		t.Fatalf("expected error for missing header")
	}
}

func TestParseMissingRoot(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Whatever true >>")
	data := b.finish("")
	// strip /Root from the trailer
	data = bytes.Replace(data, []byte("/Root 1 0 R "), nil, 1)

	_, err := New(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}

func TestParseNestedStructures(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.add(3, "<< /A [1 2.5 (str) /Nm << /Inner [true null] >>] >>")
	doc := parseDoc(t, b.finish(""))

	dict := doc.ResolveDict(raw.Ref(3, 0))
	arrObj, _ := dict.Get("A")
	arr, ok := arrObj.(*raw.ArrayObj)
	if !ok || arr.Len() != 5 {
		t.Fatalf("array: %v", arrObj)
	}
	inner, _ := arr.Get(4)
	innerDict, ok := inner.(*raw.DictObj)
	if !ok {
		t.Fatalf("nested dict missing")
	}
	nested, _ := innerDict.Get("Inner")
	nestedArr, ok := nested.(*raw.ArrayObj)
	if !ok || nestedArr.Len() != 2 {
		t.Fatalf("nested array: %v", nested)
	}
}
