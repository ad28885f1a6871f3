package extract

import (
	"pdfcensor/coords"
	"pdfcensor/ir/raw"
	"pdfcensor/page"
)

// OpKind says what a bounded operation group paints.
type OpKind int

const (
	KindText OpKind = iota
	KindPath
	KindImage
	KindXObject
)

// OpBox is the device-space extent of one removable operation group.
// Start..End are inclusive indexes into the page's operation list; path
// construction and its paint operator form a single group so removal never
// leaves half a path behind. Keep holds stub operations that reproduce the
// group's state side effects (text advance, line moves, spacing) without
// painting anything, so removing the group does not shift what follows.
type OpBox struct {
	Start int
	End   int
	BBox  coords.Rect
	Kind  OpKind
	Keep  []page.Operation
}

// OpBoxes traces the page and returns the bounding box of every painting
// operation group. Clipping-only path groups (W n) are not reported, since
// removing them would change the clip state of everything after.
func OpBoxes(p *page.Page) []OpBox {
	t := newTracer(p)
	var boxes []OpBox

	pathStart := -1
	var pathPoints []coords.Point
	clipOnly := false

	addPoint := func(x, y float64) {
		pathPoints = append(pathPoints, t.ctm.Transform(coords.Point{X: x, Y: y}))
	}

	for i, op := range p.Ops {
		runsBefore := len(t.runs)
		t.step(i, op)

		if len(t.runs) > runsBefore {
			box := t.runs[runsBefore].BBox
			for _, r := range t.runs[runsBefore+1:] {
				box = box.Union(r.BBox)
			}
			boxes = append(boxes, OpBox{
				Start: i,
				End:   i,
				BBox:  box,
				Kind:  KindText,
				Keep:  textStub(op, t),
			})
			continue
		}

		switch op.Operator {
		case "m", "l":
			if len(op.Operands) == 2 {
				if pathStart < 0 {
					pathStart = i
				}
				addPoint(numOperand(op.Operands[0]), numOperand(op.Operands[1]))
			}
		case "c":
			if len(op.Operands) == 6 {
				if pathStart < 0 {
					pathStart = i
				}
				for j := 0; j < 6; j += 2 {
					addPoint(numOperand(op.Operands[j]), numOperand(op.Operands[j+1]))
				}
			}
		case "v", "y":
			if len(op.Operands) == 4 {
				if pathStart < 0 {
					pathStart = i
				}
				for j := 0; j < 4; j += 2 {
					addPoint(numOperand(op.Operands[j]), numOperand(op.Operands[j+1]))
				}
			}
		case "re":
			if len(op.Operands) == 4 {
				if pathStart < 0 {
					pathStart = i
				}
				x, y := numOperand(op.Operands[0]), numOperand(op.Operands[1])
				w, h := numOperand(op.Operands[2]), numOperand(op.Operands[3])
				addPoint(x, y)
				addPoint(x+w, y)
				addPoint(x+w, y+h)
				addPoint(x, y+h)
			}
		case "h":
			// closepath adds no new extent
		case "W", "W*":
			clipOnly = true
		case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*", "n":
			if pathStart >= 0 && len(pathPoints) > 0 {
				paints := op.Operator != "n"
				if paints && !clipOnly {
					boxes = append(boxes, OpBox{
						Start: pathStart,
						End:   i,
						BBox:  coords.BoundingRect(pathPoints...),
						Kind:  KindPath,
					})
				}
			}
			pathStart = -1
			pathPoints = nil
			clipOnly = false
		case "Do":
			boxes = append(boxes, OpBox{Start: i, End: i, BBox: unitSquare(t.ctm), Kind: KindXObject})
		case "BI":
			boxes = append(boxes, OpBox{Start: i, End: i, BBox: unitSquare(t.ctm), Kind: KindImage})
		}
	}
	return boxes
}

// textStub builds the operations that stand in for a removed show op: the
// line move and spacing changes it performed, plus a TJ kern covering its
// advance so the following run stays where it was.
func textStub(op page.Operation, t *tracer) []page.Operation {
	var stub []page.Operation
	switch op.Operator {
	case "'":
		stub = append(stub, page.Operation{Operator: "T*"})
	case "\"":
		if len(op.Operands) == 3 {
			stub = append(stub,
				page.Operation{Operator: "Tw", Operands: []raw.Object{op.Operands[0]}},
				page.Operation{Operator: "Tc", Operands: []raw.Object{op.Operands[1]}},
				page.Operation{Operator: "T*"},
			)
		}
	}
	if kern, ok := advanceKern(t); ok {
		stub = append(stub, page.Operation{
			Operator: "TJ",
			Operands: []raw.Object{raw.NewArray(raw.Float(kern))},
		})
	}
	return stub
}

// advanceKern converts the last show op's text-space advance into the TJ
// adjustment that produces the same displacement.
func advanceKern(t *tracer) (float64, bool) {
	if t.lastAdvance == 0 || t.fontSize == 0 || t.horizSc == 0 {
		return 0, false
	}
	return -t.lastAdvance * 1000 / (t.fontSize * t.horizSc), true
}

// unitSquare maps the image unit square through the CTM; that is the area
// an image or form XObject occupies.
func unitSquare(m coords.Matrix) coords.Rect {
	return coords.BoundingRect(
		m.Transform(coords.Point{X: 0, Y: 0}),
		m.Transform(coords.Point{X: 1, Y: 0}),
		m.Transform(coords.Point{X: 0, Y: 1}),
		m.Transform(coords.Point{X: 1, Y: 1}),
	)
}
