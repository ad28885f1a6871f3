package page

import (
	"context"
	"errors"
	"fmt"

	"pdfcensor/coords"
	"pdfcensor/filters"
	"pdfcensor/ir/raw"
)

// Page is the semantic view of one page: its geometry, resources, and the
// decoded content stream as an operation list.
type Page struct {
	Ref       raw.ObjectRef
	RawDict   *raw.DictObj
	MediaBox  coords.Rect
	Rotate    int
	Resources *Resources
	Ops       []Operation
}

// inherited carries the attributes a Pages node passes down to its kids.
type inherited struct {
	mediaBox  *coords.Rect
	rotate    *int
	resources *raw.DictObj
}

// Count walks the page tree and returns the number of leaf pages.
func Count(doc *raw.Document) (int, error) {
	rootRef, ok := doc.Root()
	if !ok {
		return 0, errors.New("document has no catalog")
	}
	catalog := doc.ResolveDict(raw.RefObj{R: rootRef})
	if catalog == nil {
		return 0, errors.New("catalog is not a dictionary")
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return 0, errors.New("catalog has no page tree")
	}
	n := 0
	err := walk(doc, pagesObj, inherited{}, 0, func(raw.ObjectRef, *raw.DictObj, inherited) error {
		n++
		return nil
	})
	return n, err
}

// First returns the semantic model of the first page, with inherited
// attributes applied and the content stream decoded and parsed.
func First(ctx context.Context, doc *raw.Document, pipeline *filters.Pipeline) (*Page, error) {
	rootRef, ok := doc.Root()
	if !ok {
		return nil, errors.New("document has no catalog")
	}
	catalog := doc.ResolveDict(raw.RefObj{R: rootRef})
	if catalog == nil {
		return nil, errors.New("catalog is not a dictionary")
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil, errors.New("catalog has no page tree")
	}

	var first *Page
	stop := errors.New("stop")
	err := walk(doc, pagesObj, inherited{}, 0, func(ref raw.ObjectRef, dict *raw.DictObj, inh inherited) error {
		p, err := build(ctx, doc, ref, dict, inh, pipeline)
		if err != nil {
			return err
		}
		first = p
		return stop
	})
	if err != nil && !errors.Is(err, stop) {
		return nil, err
	}
	if first == nil {
		return nil, errors.New("page tree has no pages")
	}
	return first, nil
}

// walk visits page-tree leaves depth-first, threading inherited attributes.
func walk(doc *raw.Document, node raw.Object, inh inherited, depth int, visit func(raw.ObjectRef, *raw.DictObj, inherited) error) error {
	if depth > 32 {
		return errors.New("page tree too deep")
	}
	var ref raw.ObjectRef
	if r, ok := node.(raw.RefObj); ok {
		ref = r.R
	}
	dict := doc.ResolveDict(node)
	if dict == nil {
		return errors.New("page tree node is not a dictionary")
	}

	if box := rectEntry(doc, dict, "MediaBox"); box != nil {
		inh.mediaBox = box
	}
	if obj, ok := dict.Get("Rotate"); ok {
		if n, isNum := doc.Resolve(obj).(raw.NumberObj); isNum && n.IsInt {
			r := int(n.I)
			inh.rotate = &r
		}
	}
	if res := doc.ResolveDict(mustGet(dict, "Resources")); res != nil {
		inh.resources = res
	}

	switch dict.Name("Type") {
	case "Pages":
		kidsObj, ok := dict.Get("Kids")
		if !ok {
			return errors.New("pages node has no kids")
		}
		kids, isArr := doc.Resolve(kidsObj).(*raw.ArrayObj)
		if !isArr {
			return errors.New("kids is not an array")
		}
		for _, kid := range kids.Items {
			if err := walk(doc, kid, inh, depth+1, visit); err != nil {
				return err
			}
		}
		return nil
	case "Page":
		return visit(ref, dict, inh)
	default:
		return fmt.Errorf("page tree node has type %q", dict.Name("Type"))
	}
}

func build(ctx context.Context, doc *raw.Document, ref raw.ObjectRef, dict *raw.DictObj, inh inherited, pipeline *filters.Pipeline) (*Page, error) {
	p := &Page{Ref: ref, RawDict: dict}
	if inh.mediaBox == nil {
		// US Letter is the conventional fallback for pages without geometry
		p.MediaBox = coords.Rect{URX: 612, URY: 792}
	} else {
		p.MediaBox = *inh.mediaBox
	}
	if inh.rotate != nil {
		p.Rotate = ((*inh.rotate % 360) + 360) % 360
	}

	res, err := loadResources(ctx, doc, inh.resources, pipeline)
	if err != nil {
		return nil, fmt.Errorf("loading page resources: %w", err)
	}
	p.Resources = res

	content, err := contentBytes(ctx, doc, dict, pipeline)
	if err != nil {
		return nil, fmt.Errorf("decoding page content: %w", err)
	}
	ops, err := ParseContent(content)
	if err != nil {
		return nil, fmt.Errorf("parsing page content: %w", err)
	}
	p.Ops = ops
	return p, nil
}

// contentBytes concatenates the page's content streams, decoded.
func contentBytes(ctx context.Context, doc *raw.Document, dict *raw.DictObj, pipeline *filters.Pipeline) ([]byte, error) {
	obj, ok := dict.Get("Contents")
	if !ok {
		return nil, nil
	}
	var streams []*raw.StreamObj
	switch c := doc.Resolve(obj).(type) {
	case *raw.StreamObj:
		streams = append(streams, c)
	case *raw.ArrayObj:
		for _, item := range c.Items {
			s, isStream := doc.Resolve(item).(*raw.StreamObj)
			if !isStream {
				return nil, errors.New("contents array holds a non-stream")
			}
			streams = append(streams, s)
		}
	default:
		return nil, errors.New("contents is neither stream nor array")
	}

	var out []byte
	for _, s := range streams {
		names, params := filters.ForStream(s.Dict)
		decoded, err := pipeline.Decode(ctx, s.Data, names, params)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, decoded...)
	}
	return out, nil
}

func rectEntry(doc *raw.Document, dict *raw.DictObj, key string) *coords.Rect {
	obj, ok := dict.Get(key)
	if !ok {
		return nil
	}
	arr, isArr := doc.Resolve(obj).(*raw.ArrayObj)
	if !isArr || arr.Len() != 4 {
		return nil
	}
	var vals [4]float64
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		n, isNum := doc.Resolve(item).(raw.NumberObj)
		if !isNum {
			return nil
		}
		vals[i] = n.Float()
	}
	r := coords.Rect{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return &r
}

func mustGet(dict *raw.DictObj, key string) raw.Object {
	obj, ok := dict.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return obj
}
