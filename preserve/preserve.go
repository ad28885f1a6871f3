package preserve

import (
	"strings"

	"pdfcensor/fields"
	"pdfcensor/ir/raw"
	"pdfcensor/page"
)

// Insertion point and rendering parameters for preserved values: a margin
// strip along the left page edge, written bottom-up in white 10 pt text.
const (
	insertX  = 90
	insertY  = 784
	fontSize = 10
	fontName = "FPres"
)

// Apply re-renders the preserved field values at the designated margin
// point. When includeInfo is false, or no fields were found, the page is
// returned unchanged. The values are rendered regardless of whether their
// original position was redacted, and the designated location takes
// precedence even when a region covers it: the text is inserted after
// redaction and is not removed by it.
func Apply(doc *raw.Document, p *page.Page, flds []fields.Field, includeInfo bool) error {
	if !includeInfo || len(flds) == 0 {
		return nil
	}

	values := make([]string, 0, len(flds))
	for _, f := range flds {
		values = append(values, f.Value)
	}
	text := encodeLatin1(strings.Join(values, " "))

	p.Ops = append(p.Ops,
		page.Operation{Operator: "q"},
		page.Operation{Operator: "BT"},
		page.Operation{Operator: "Tf", Operands: []raw.Object{raw.Name(fontName), raw.Int(fontSize)}},
		page.Operation{Operator: "rg", Operands: []raw.Object{raw.Int(1), raw.Int(1), raw.Int(1)}},
		// rotate the baseline 90 degrees so the strip runs up the margin
		page.Operation{Operator: "Tm", Operands: []raw.Object{
			raw.Int(0), raw.Int(1), raw.Int(-1), raw.Int(0), raw.Int(insertX), raw.Int(insertY),
		}},
		page.Operation{Operator: "Tj", Operands: []raw.Object{raw.Str(text)}},
		page.Operation{Operator: "ET"},
		page.Operation{Operator: "Q"},
	)
	return ensureFont(doc, p)
}

// ensureFont registers an unembedded Helvetica under the reserved resource
// name so the appended text has a font to resolve against.
func ensureFont(doc *raw.Document, p *page.Page) error {
	res := doc.ResolveDict(dictEntry(p.RawDict, "Resources"))
	if res == nil {
		res = raw.Dict()
		p.RawDict.Set("Resources", res)
	}
	fontRes := doc.ResolveDict(dictEntry(res, "Font"))
	if fontRes == nil {
		fontRes = raw.Dict()
		res.Set("Font", fontRes)
	}
	if _, exists := fontRes.Get(fontName); exists {
		return nil
	}
	helv := raw.Dict()
	helv.Set("Type", raw.Name("Font"))
	helv.Set("Subtype", raw.Name("Type1"))
	helv.Set("BaseFont", raw.Name("Helvetica"))
	helv.Set("Encoding", raw.Name("WinAnsiEncoding"))
	fontRes.Set(fontName, helv)
	return nil
}

func dictEntry(d *raw.DictObj, key string) raw.Object {
	if d == nil {
		return raw.NullObj{}
	}
	obj, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return obj
}

// encodeLatin1 maps the value into the byte encoding WinAnsi covers;
// characters outside it degrade to '?' rather than corrupting the string.
func encodeLatin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	return out
}
