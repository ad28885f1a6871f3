package redact

import (
	"errors"
	"fmt"
	"sort"

	"pdfcensor/coords"
	"pdfcensor/extract"
	"pdfcensor/ir/raw"
	"pdfcensor/observability"
	"pdfcensor/page"
)

// ErrInvalidRegion marks a region whose dimensions cannot describe an area.
var ErrInvalidRegion = errors.New("invalid redaction region")

// Region is a redaction rectangle in page coordinates, origin bottom-left,
// matching the page's native content-stream space.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: %gx%g at (%g, %g)", ErrInvalidRegion, r.Width, r.Height, r.X, r.Y)
	}
	return nil
}

func (r Region) Rect() coords.Rect {
	return coords.Rect{LLX: r.X, LLY: r.Y, URX: r.X + r.Width, URY: r.Y + r.Height}
}

// Apply removes every operation group intersecting any region from the
// page's content and draws an opaque black fill over each region. Removal
// is genuine deletion: a later extraction pass finds nothing under the
// fill. Regions fully outside the page are no-ops. The result does not
// depend on region order.
func Apply(p *page.Page, regions []Region, logger observability.Logger) (int, error) {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}

	boxes := extract.OpBoxes(p)
	tree := newQuadTree(p.MediaBox, 8)
	for i, b := range boxes {
		tree.insert(b.BBox, i)
	}

	doomed := make(map[int]bool)
	var active []Region
	for _, region := range regions {
		rect := region.Rect()
		if !rect.Intersects(p.MediaBox) {
			continue
		}
		active = append(active, region)
		tree.query(rect, func(i int) { doomed[i] = true })
	}
	if len(active) == 0 {
		return 0, nil
	}

	p.Ops = rebuild(p.Ops, boxes, doomed)
	p.Ops = append(p.Ops, fillOps(active, p.MediaBox)...)

	logger.Debug("regions applied",
		observability.Int("regions", len(active)),
		observability.Int(observability.MetricOpsRemoved, len(doomed)))
	return len(doomed), nil
}

// rebuild copies the operation list, replacing each doomed group with its
// state-preserving stub.
func rebuild(ops []page.Operation, boxes []extract.OpBox, doomed map[int]bool) []page.Operation {
	if len(doomed) == 0 {
		return ops
	}
	idx := make([]int, 0, len(doomed))
	for i := range doomed {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := make([]page.Operation, 0, len(ops))
	next := 0
	pos := 0
	for pos < len(ops) {
		if next < len(idx) && boxes[idx[next]].Start == pos {
			b := boxes[idx[next]]
			out = append(out, b.Keep...)
			pos = b.End + 1
			next++
			// overlapping groups cannot happen twice at one index, but a
			// doomed group starting inside the skipped span must not
			// resurface
			for next < len(idx) && boxes[idx[next]].Start < pos {
				next++
			}
			continue
		}
		out = append(out, ops[pos])
		pos++
	}
	return out
}

// fillOps draws an opaque black rectangle over each region, clipped to the
// page, inside its own graphics-state frame.
func fillOps(regions []Region, mediaBox coords.Rect) []page.Operation {
	// deterministic output regardless of caller order
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	ops := []page.Operation{{Operator: "q"}, {Operator: "rg", Operands: []raw.Object{raw.Int(0), raw.Int(0), raw.Int(0)}}}
	for _, region := range sorted {
		rect := clamp(region.Rect(), mediaBox)
		if rect.Empty() {
			continue
		}
		ops = append(ops, page.Operation{
			Operator: "re",
			Operands: []raw.Object{
				raw.Float(rect.LLX), raw.Float(rect.LLY),
				raw.Float(rect.Width()), raw.Float(rect.Height()),
			},
		})
	}
	ops = append(ops, page.Operation{Operator: "f"}, page.Operation{Operator: "Q"})
	return ops
}
