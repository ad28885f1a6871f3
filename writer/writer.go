package writer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"pdfcensor/filters"
	"pdfcensor/ir/raw"
	"pdfcensor/page"
)

type Config struct {
	// ContentFilter names the filter applied to the rebuilt content
	// stream; FlateDecode or empty for uncompressed.
	ContentFilter string
}

// Writer serializes a document back to PDF bytes. Objects unreachable from
// the catalog are dropped, which is how orphaned metadata and replaced
// content streams disappear from the output.
type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer { return &Writer{cfg: cfg} }

// Write rebuilds the page's content stream from its operation list, wires
// it into the page dictionary, and emits the complete file: header,
// renumbered objects, xref table, and trailer. The Info reference is kept
// only when a scrubbed Info dictionary survives.
func (w *Writer) Write(doc *raw.Document, p *page.Page) ([]byte, error) {
	rootRef, ok := doc.Root()
	if !ok {
		return nil, errors.New("document has no catalog")
	}

	if p != nil {
		if err := w.replaceContent(doc, p); err != nil {
			return nil, err
		}
	}

	reachable := reach(doc, rootRef)
	if len(reachable) == 0 {
		return nil, errors.New("catalog is unreachable")
	}
	// Info is referenced from the trailer, not the catalog, so a surviving
	// Info dictionary needs an explicit root
	if doc.Info != nil {
		if _, ok := doc.Objects[doc.InfoRef]; ok {
			for ref, v := range reach(doc, doc.InfoRef) {
				reachable[ref] = reachable[ref] || v
			}
		}
	}

	// renumber in old-number order so output is deterministic
	old := make([]raw.ObjectRef, 0, len(reachable))
	for ref := range reachable {
		old = append(old, ref)
	}
	sort.Slice(old, func(i, j int) bool { return old[i].Num < old[j].Num })
	mapping := make(map[raw.ObjectRef]int, len(old))
	for i, ref := range old {
		mapping[ref] = i + 1
	}

	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	out := []byte("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int64, len(old)+1)
	for i, ref := range old {
		offsets[i+1] = int64(len(out))
		out = strconv.AppendInt(out, int64(i+1), 10)
		out = append(out, " 0 obj\n"...)
		out = raw.AppendObject(out, remapRefs(doc.Objects[ref], mapping))
		out = append(out, "\nendobj\n"...)
	}

	xrefOff := len(out)
	out = append(out, "xref\n0 "...)
	out = strconv.AppendInt(out, int64(len(old)+1), 10)
	out = append(out, '\n')
	out = append(out, "0000000000 65535 f \n"...)
	for _, off := range offsets[1:] {
		out = append(out, fmt.Sprintf("%010d 00000 n \n", off)...)
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.Int(int64(len(old)+1)))
	newRoot, ok := mapping[rootRef]
	if !ok {
		return nil, errors.New("catalog not in reachable set")
	}
	trailer.Set("Root", raw.Ref(newRoot, 0))
	if doc.Info != nil {
		if n, ok := mapping[doc.InfoRef]; ok {
			trailer.Set("Info", raw.Ref(n, 0))
		}
	}

	out = append(out, "trailer\n"...)
	out = raw.AppendDict(out, trailer)
	out = append(out, "\nstartxref\n"...)
	out = strconv.AppendInt(out, int64(xrefOff), 10)
	out = append(out, "\n%%EOF\n"...)
	return out, nil
}

// replaceContent serializes the page's operations into a fresh stream
// object and points the page dictionary at it.
func (w *Writer) replaceContent(doc *raw.Document, p *page.Page) error {
	if p.RawDict == nil {
		return errors.New("page has no dictionary")
	}
	data := page.EncodeContent(p.Ops)
	dict := raw.Dict()
	switch w.cfg.ContentFilter {
	case "":
	case "FlateDecode":
		data = filters.FlateEncode(data)
		dict.Set("Filter", raw.Name("FlateDecode"))
	default:
		return fmt.Errorf("unsupported content filter %q", w.cfg.ContentFilter)
	}
	dict.Set("Length", raw.Int(int64(len(data))))

	num := 0
	for ref := range doc.Objects {
		if ref.Num > num {
			num = ref.Num
		}
	}
	num++
	doc.Objects[raw.ObjectRef{Num: num}] = raw.NewStream(dict, data)
	p.RawDict.Set("Contents", raw.Ref(num, 0))
	return nil
}

// reach walks the reference graph from the catalog.
func reach(doc *raw.Document, root raw.ObjectRef) map[raw.ObjectRef]bool {
	seen := make(map[raw.ObjectRef]bool)
	var visit func(obj raw.Object)
	var visitRef func(ref raw.ObjectRef)
	visit = func(obj raw.Object) {
		switch o := obj.(type) {
		case raw.RefObj:
			visitRef(o.R)
		case *raw.ArrayObj:
			for _, item := range o.Items {
				visit(item)
			}
		case *raw.DictObj:
			for _, k := range o.Keys() {
				v, _ := o.Get(k)
				visit(v)
			}
		case *raw.StreamObj:
			visit(o.Dict)
		}
	}
	visitRef = func(ref raw.ObjectRef) {
		if seen[ref] {
			return
		}
		obj, ok := doc.Objects[ref]
		if !ok {
			return
		}
		seen[ref] = true
		visit(obj)
	}
	visitRef(root)
	return seen
}

// remapRefs rewrites indirect references to the renumbered space without
// mutating the source object.
func remapRefs(obj raw.Object, mapping map[raw.ObjectRef]int) raw.Object {
	switch o := obj.(type) {
	case raw.RefObj:
		if n, ok := mapping[o.R]; ok {
			return raw.Ref(n, 0)
		}
		return raw.NullObj{}
	case *raw.ArrayObj:
		items := make([]raw.Object, len(o.Items))
		for i, item := range o.Items {
			items[i] = remapRefs(item, mapping)
		}
		return &raw.ArrayObj{Items: items}
	case *raw.DictObj:
		d := raw.Dict()
		for _, k := range o.Keys() {
			v, _ := o.Get(k)
			d.Set(k, remapRefs(v, mapping))
		}
		return d
	case *raw.StreamObj:
		return raw.NewStream(remapRefs(o.Dict, mapping).(*raw.DictObj), o.Data)
	default:
		return obj
	}
}
