package preserve

import (
	"strings"
	"testing"

	"pdfcensor/coords"
	"pdfcensor/extract"
	"pdfcensor/fields"
	"pdfcensor/ir/raw"
	"pdfcensor/page"
)

func testPage() (*raw.Document, *page.Page) {
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object), Trailer: raw.Dict()}
	p := &page.Page{
		RawDict:   raw.Dict(),
		MediaBox:  coords.Rect{URX: 612, URY: 792},
		Resources: &page.Resources{Fonts: map[string]*page.Font{}},
	}
	return doc, p
}

func sampleFields() []fields.Field {
	return []fields.Field{
		{Kind: fields.KindGender, Value: "Masculino"},
		{Kind: fields.KindAge, Value: "(34 años)"},
	}
}

func TestApplyRendersValues(t *testing.T) {
	doc, p := testPage()
	if err := Apply(doc, p, sampleFields(), true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	text := extract.PageText(p)
	if !strings.Contains(text, "Masculino") || !strings.Contains(text, "años") {
		t.Errorf("preserved values not extractable: %q", text)
	}
}

func TestApplyPlacesTextAtMarginPoint(t *testing.T) {
	doc, p := testPage()
	if err := Apply(doc, p, sampleFields(), true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	runs := extract.Runs(p)
	if len(runs) != 1 {
		t.Fatalf("got %d runs", len(runs))
	}
	b := runs[0].BBox
	// the 90 degree baseline makes the box a vertical strip at x=90
	if b.LLY < 780 || b.URX > 95 || b.LLX < 75 {
		t.Errorf("insertion box: %+v", b)
	}
	if b.Height() <= b.Width() {
		t.Errorf("baseline not rotated: %+v", b)
	}
}

func TestApplyIncludeInfoFalse(t *testing.T) {
	doc, p := testPage()
	if err := Apply(doc, p, sampleFields(), false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(p.Ops) != 0 {
		t.Errorf("includeInfo=false added ops: %+v", p.Ops)
	}
}

func TestApplyNoFieldsSilent(t *testing.T) {
	doc, p := testPage()
	if err := Apply(doc, p, nil, true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(p.Ops) != 0 {
		t.Errorf("empty field set added ops: %+v", p.Ops)
	}
}

func TestApplyRegistersFontResource(t *testing.T) {
	doc, p := testPage()
	if err := Apply(doc, p, sampleFields(), true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	res := doc.ResolveDict(mustEntry(t, p.RawDict, "Resources"))
	fontRes := doc.ResolveDict(mustEntry(t, res, "Font"))
	font := doc.ResolveDict(mustEntry(t, fontRes, fontName))
	if font.Name("BaseFont") != "Helvetica" {
		t.Errorf("font dict: %+v", font)
	}
}

func TestApplyKeepsExistingFonts(t *testing.T) {
	doc, p := testPage()
	res := raw.Dict()
	fonts := raw.Dict()
	f1 := raw.Dict()
	f1.Set("BaseFont", raw.Name("Courier"))
	fonts.Set("F1", f1)
	res.Set("Font", fonts)
	p.RawDict.Set("Resources", res)

	if err := Apply(doc, p, sampleFields(), true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := fonts.Get("F1"); !ok {
		t.Errorf("existing font displaced")
	}
	if _, ok := fonts.Get(fontName); !ok {
		t.Errorf("preservation font not added")
	}
}

func TestEncodeLatin1(t *testing.T) {
	got := encodeLatin1("año 漢")
	want := []byte{'a', 0xF1, 'o', ' ', '?'}
	if string(got) != string(want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func mustEntry(t *testing.T, d *raw.DictObj, key string) raw.Object {
	t.Helper()
	if d == nil {
		t.Fatalf("nil dict looking for %s", key)
	}
	obj, ok := d.Get(key)
	if !ok {
		t.Fatalf("missing %s", key)
	}
	return obj
}
