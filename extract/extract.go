package extract

import (
	"sort"
	"strings"

	"pdfcensor/coords"
	"pdfcensor/ir/raw"
	"pdfcensor/page"
)

// TextRun is one shown string with its device-space bounding box and the
// index of the operation that painted it.
type TextRun struct {
	Text    string
	BBox    coords.Rect
	OpIndex int
}

// Runs traces the page's operations and returns every text run in content
// order.
func Runs(p *page.Page) []TextRun {
	t := newTracer(p)
	for i, op := range p.Ops {
		t.step(i, op)
	}
	return t.runs
}

// ReadingOrder sorts runs top-to-bottom, then left-to-right. Runs on the
// same visual line (vertical overlap) keep left-to-right order.
func ReadingOrder(runs []TextRun) []TextRun {
	out := make([]TextRun, len(runs))
	copy(out, runs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].BBox, out[j].BBox
		if a.LLY > b.URY {
			return true
		}
		if b.LLY > a.URY {
			return false
		}
		return a.LLX < b.LLX
	})
	return out
}

// PageText joins the page's runs in reading order. Line breaks are inserted
// between runs that do not vertically overlap.
func PageText(p *page.Page) string {
	runs := ReadingOrder(Runs(p))
	var sb strings.Builder
	for i, r := range runs {
		if i > 0 {
			prev := runs[i-1].BBox
			if prev.LLY > r.BBox.URY {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// HasText reports whether any run contains a visible character.
func HasText(p *page.Page) bool {
	for _, r := range Runs(p) {
		if strings.TrimSpace(r.Text) != "" {
			return true
		}
	}
	return false
}

// tracer replays the operation list with enough graphics state to place
// text: the CTM stack and the text matrices.
type tracer struct {
	page *page.Page
	runs []TextRun

	ctm      coords.Matrix
	ctmStack []coords.Matrix

	font     *page.Font
	fontSize float64
	charSp   float64
	wordSp   float64
	horizSc  float64
	leading  float64
	tm       coords.Matrix
	tlm      coords.Matrix
	inText   bool

	// advance of the most recent show op, for callers that need to
	// substitute an equivalent positioning stub
	lastAdvance float64
}

func newTracer(p *page.Page) *tracer {
	return &tracer{page: p, ctm: coords.Identity(), horizSc: 1}
}

func (t *tracer) step(idx int, op page.Operation) {
	switch op.Operator {
	case "q":
		t.ctmStack = append(t.ctmStack, t.ctm)
	case "Q":
		if n := len(t.ctmStack); n > 0 {
			t.ctm = t.ctmStack[n-1]
			t.ctmStack = t.ctmStack[:n-1]
		}
	case "cm":
		if m, ok := matrixOperands(op.Operands); ok {
			t.ctm = m.Multiply(t.ctm)
		}
	case "BT":
		t.tm = coords.Identity()
		t.tlm = coords.Identity()
		t.inText = true
	case "ET":
		t.inText = false
	case "Tf":
		if len(op.Operands) == 2 {
			if name, ok := op.Operands[0].(raw.NameObj); ok {
				t.font = t.page.Resources.Fonts[name.Val]
			}
			t.fontSize = numOperand(op.Operands[1])
		}
	case "Tc":
		t.charSp = firstNum(op.Operands)
	case "Tw":
		t.wordSp = firstNum(op.Operands)
	case "Tz":
		t.horizSc = firstNum(op.Operands) / 100
	case "TL":
		t.leading = firstNum(op.Operands)
	case "Tm":
		if m, ok := matrixOperands(op.Operands); ok {
			t.tm = m
			t.tlm = m
		}
	case "Td":
		if len(op.Operands) == 2 {
			t.moveLine(numOperand(op.Operands[0]), numOperand(op.Operands[1]))
		}
	case "TD":
		if len(op.Operands) == 2 {
			t.leading = -numOperand(op.Operands[1])
			t.moveLine(numOperand(op.Operands[0]), numOperand(op.Operands[1]))
		}
	case "T*":
		t.moveLine(0, -t.leading)
	case "Tj":
		if len(op.Operands) == 1 {
			t.show(idx, stringOperand(op.Operands[0]))
		}
	case "'":
		t.moveLine(0, -t.leading)
		if len(op.Operands) == 1 {
			t.show(idx, stringOperand(op.Operands[0]))
		}
	case "\"":
		if len(op.Operands) == 3 {
			t.wordSp = numOperand(op.Operands[0])
			t.charSp = numOperand(op.Operands[1])
			t.moveLine(0, -t.leading)
			t.show(idx, stringOperand(op.Operands[2]))
		}
	case "TJ":
		if len(op.Operands) == 1 {
			t.showTJ(idx, op.Operands[0])
		}
	}
}

func (t *tracer) moveLine(tx, ty float64) {
	t.tlm = coords.Translate(tx, ty).Multiply(t.tlm)
	t.tm = t.tlm
}

// show appends a run for one shown string and advances the text matrix.
func (t *tracer) show(idx int, b []byte) {
	if b == nil || !t.inText {
		return
	}
	text, advance := t.measure(b)
	t.lastAdvance = advance
	t.emit(idx, text, advance)
	t.tm = coords.Translate(advance, 0).Multiply(t.tm)
}

// showTJ handles the array form: strings interleaved with position
// adjustments in thousandths of text space.
func (t *tracer) showTJ(idx int, operand raw.Object) {
	arr, ok := operand.(*raw.ArrayObj)
	if !ok || !t.inText {
		return
	}
	var text strings.Builder
	start := t.tm
	total := 0.0
	pendingSpace := false
	for _, item := range arr.Items {
		switch v := item.(type) {
		case raw.StringObj:
			s, adv := t.measure(v.Bytes)
			if pendingSpace && text.Len() > 0 {
				text.WriteByte(' ')
			}
			pendingSpace = false
			text.WriteString(s)
			total += adv
		case raw.NumberObj:
			shift := -v.Float() / 1000 * t.fontSize * t.horizSc
			// a large negative kern is how some producers emit spaces
			if shift > 0.2*t.fontSize {
				pendingSpace = true
			}
			total += shift
		}
	}
	t.tm = start
	t.lastAdvance = total
	t.emit(idx, text.String(), total)
	t.tm = coords.Translate(total, 0).Multiply(start)
}

// measure decodes a string and computes its advance in text space.
func (t *tracer) measure(b []byte) (string, float64) {
	if t.font == nil {
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		w := float64(len(b)) * 0.5 * t.fontSize * t.horizSc
		return string(runes), w
	}
	runes := t.font.Decode(b)
	var advance float64
	for _, code := range t.font.Codes(b) {
		w := t.font.GlyphWidth(code)/1000*t.fontSize + t.charSp
		if code == ' ' {
			w += t.wordSp
		}
		advance += w * t.horizSc
	}
	return string(runes), advance
}

// emit records a run whose box spans the advance width at the current text
// position, mapped through Tm and the CTM.
func (t *tracer) emit(idx int, text string, advance float64) {
	if text == "" {
		return
	}
	trm := t.tm.Multiply(t.ctm)
	// descender allowance of 0.2em keeps the box over the full glyph
	corners := []coords.Point{
		trm.Transform(coords.Point{X: 0, Y: -0.2 * t.fontSize}),
		trm.Transform(coords.Point{X: advance, Y: -0.2 * t.fontSize}),
		trm.Transform(coords.Point{X: 0, Y: t.fontSize}),
		trm.Transform(coords.Point{X: advance, Y: t.fontSize}),
	}
	t.runs = append(t.runs, TextRun{
		Text:    text,
		BBox:    coords.BoundingRect(corners...),
		OpIndex: idx,
	})
}

func matrixOperands(ops []raw.Object) (coords.Matrix, bool) {
	if len(ops) != 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i := range m {
		m[i] = numOperand(ops[i])
	}
	return m, true
}

func numOperand(obj raw.Object) float64 {
	if n, ok := obj.(raw.NumberObj); ok {
		return n.Float()
	}
	return 0
}

func firstNum(ops []raw.Object) float64 {
	if len(ops) == 0 {
		return 0
	}
	return numOperand(ops[0])
}

func stringOperand(obj raw.Object) []byte {
	if s, ok := obj.(raw.StringObj); ok {
		return s.Bytes
	}
	return nil
}
