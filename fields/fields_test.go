package fields

import (
	"testing"

	"golang.org/x/text/unicode/norm"

	"pdfcensor/coords"
	"pdfcensor/extract"
)

func run(text string, y float64) extract.TextRun {
	return extract.TextRun{Text: text, BBox: coords.Rect{LLX: 10, LLY: y, URX: 200, URY: y + 10}}
}

func TestDetectGenderAndAge(t *testing.T) {
	runs := []extract.TextRun{
		run("Paciente: Juan Perez", 700),
		run("Sexo: Masculino (34 años)", 680),
	}
	got := Detect(runs, Defaults())
	if len(got) != 2 {
		t.Fatalf("got %d fields: %+v", len(got), got)
	}
	byKind := map[Kind]Field{}
	for _, f := range got {
		byKind[f.Kind] = f
	}
	if byKind[KindGender].Value != "Masculino" {
		t.Errorf("gender: %q", byKind[KindGender].Value)
	}
	if byKind[KindAge].Value != "(34 años)" {
		t.Errorf("age: %q", byKind[KindAge].Value)
	}
	if byKind[KindAge].BBox.LLY != 680 {
		t.Errorf("age bbox: %+v", byKind[KindAge].BBox)
	}
}

func TestDetectFirstMatchPerKindWins(t *testing.T) {
	runs := []extract.TextRun{
		run("Femenino", 700),
		run("Masculino", 650),
	}
	got := Detect(runs, Defaults())
	if len(got) != 1 || got[0].Value != "Femenino" {
		t.Fatalf("got %+v, want the topmost gender", got)
	}
}

func TestDetectReadingOrderNotContentOrder(t *testing.T) {
	// content order has the lower run first; reading order must win
	runs := []extract.TextRun{
		run("Masculino", 100),
		run("Femenino", 700),
	}
	got := Detect(runs, Defaults())
	if len(got) != 1 || got[0].Value != "Femenino" {
		t.Fatalf("got %+v, want Femenino from the top of the page", got)
	}
}

func TestDetectAbsentFieldsSilent(t *testing.T) {
	runs := []extract.TextRun{run("sin datos personales", 700)}
	if got := Detect(runs, Defaults()); len(got) != 0 {
		t.Fatalf("got %+v, want none", got)
	}
}

func TestDetectNormalizesDecomposedText(t *testing.T) {
	// "años" with a combining tilde, as some extractors produce it
	decomposed := norm.NFD.String("Sexo: Femenino (41 años)")
	got := Detect([]extract.TextRun{run(decomposed, 700)}, Defaults())
	if len(got) != 2 {
		t.Fatalf("got %d fields from decomposed text: %+v", len(got), got)
	}
}

func TestScriptMatcher(t *testing.T) {
	m, err := NewScriptMatcher(KindGender, `
		function match(text) {
			if (text.indexOf("Hombre") >= 0) return "Hombre";
			if (text.indexOf("Mujer") >= 0) return "Mujer";
			return null;
		}
	`)
	if err != nil {
		t.Fatalf("new script matcher: %v", err)
	}
	if v, ok := m.Match("Sexo: Mujer"); !ok || v != "Mujer" {
		t.Errorf("got %q ok=%v", v, ok)
	}
	if _, ok := m.Match("nada"); ok {
		t.Errorf("matched where it should not")
	}
}

func TestScriptMatcherRejectsBadScript(t *testing.T) {
	if _, err := NewScriptMatcher(KindAge, `var x = 1;`); err == nil {
		t.Fatalf("expected error for script without match function")
	}
	if _, err := NewScriptMatcher(KindAge, `function match( {`); err == nil {
		t.Fatalf("expected error for syntax error")
	}
}
