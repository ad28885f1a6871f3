package redact

import (
	"pdfcensor/coords"
)

// quadTree is a spatial index over operation bounding boxes, queried once
// per redaction region.
type quadTree struct {
	bounds   coords.Rect
	capacity int
	entries  []treeEntry
	nodes    []*quadTree
}

type treeEntry struct {
	rect  coords.Rect
	index int
}

func newQuadTree(bounds coords.Rect, capacity int) *quadTree {
	return &quadTree{bounds: bounds, capacity: capacity}
}

// insert places rect in the deepest node that fully contains it. Boxes that
// straddle the page edge are clamped so they still index.
func (qt *quadTree) insert(rect coords.Rect, index int) {
	if !qt.bounds.Intersects(rect) {
		rect = clamp(rect, qt.bounds)
	}
	qt.insertFitted(rect, index)
}

func (qt *quadTree) insertFitted(rect coords.Rect, index int) {
	if qt.nodes != nil {
		for _, node := range qt.nodes {
			if node.bounds.Contains(rect) {
				node.insertFitted(rect, index)
				return
			}
		}
		qt.entries = append(qt.entries, treeEntry{rect, index})
		return
	}

	if len(qt.entries) < qt.capacity {
		qt.entries = append(qt.entries, treeEntry{rect, index})
		return
	}

	qt.subdivide()
	old := qt.entries
	qt.entries = nil
	for _, e := range old {
		qt.insertFitted(e.rect, e.index)
	}
	qt.insertFitted(rect, index)
}

func (qt *quadTree) subdivide() {
	xMid := (qt.bounds.LLX + qt.bounds.URX) / 2
	yMid := (qt.bounds.LLY + qt.bounds.URY) / 2
	qt.nodes = []*quadTree{
		newQuadTree(coords.Rect{LLX: qt.bounds.LLX, LLY: yMid, URX: xMid, URY: qt.bounds.URY}, qt.capacity),
		newQuadTree(coords.Rect{LLX: xMid, LLY: yMid, URX: qt.bounds.URX, URY: qt.bounds.URY}, qt.capacity),
		newQuadTree(coords.Rect{LLX: qt.bounds.LLX, LLY: qt.bounds.LLY, URX: xMid, URY: yMid}, qt.capacity),
		newQuadTree(coords.Rect{LLX: xMid, LLY: qt.bounds.LLY, URX: qt.bounds.URX, URY: yMid}, qt.capacity),
	}
}

func (qt *quadTree) query(region coords.Rect, hit func(index int)) {
	if !qt.bounds.Intersects(region) && len(qt.entries) == 0 {
		return
	}
	for _, e := range qt.entries {
		if e.rect.Intersects(region) {
			hit(e.index)
		}
	}
	for _, node := range qt.nodes {
		node.query(region, hit)
	}
}

func clamp(r, bounds coords.Rect) coords.Rect {
	if r.LLX < bounds.LLX {
		r.LLX = bounds.LLX
	}
	if r.LLY < bounds.LLY {
		r.LLY = bounds.LLY
	}
	if r.URX > bounds.URX {
		r.URX = bounds.URX
	}
	if r.URY > bounds.URY {
		r.URY = bounds.URY
	}
	if r.LLX > r.URX {
		r.URX = r.LLX
	}
	if r.LLY > r.URY {
		r.URY = r.LLY
	}
	return r
}
