package page

import (
	"bytes"
	"context"
	"fmt"

	"pdfcensor/filters"
	"pdfcensor/ir/raw"
	"pdfcensor/scanner"
)

// Resources holds the page resources the pipeline cares about: fonts for
// text decoding and XObjects for image geometry.
type Resources struct {
	Fonts    map[string]*Font
	XObjects map[string]*raw.DictObj
}

// Font carries what text extraction needs: the code-to-unicode mapping and
// enough width information to estimate glyph extents.
type Font struct {
	BaseFont     string
	Subtype      string
	FirstChar    int
	Widths       []float64
	MissingWidth float64
	ToUnicode    map[uint32]rune
	TwoByte      bool
}

func loadResources(ctx context.Context, doc *raw.Document, res *raw.DictObj, pipeline *filters.Pipeline) (*Resources, error) {
	out := &Resources{
		Fonts:    make(map[string]*Font),
		XObjects: make(map[string]*raw.DictObj),
	}
	if res == nil {
		return out, nil
	}

	if fonts := doc.ResolveDict(mustGet(res, "Font")); fonts != nil {
		for _, name := range fonts.Keys() {
			fontDict := doc.ResolveDict(mustGet(fonts, name))
			if fontDict == nil {
				continue
			}
			font, err := loadFont(ctx, doc, fontDict, pipeline)
			if err != nil {
				return nil, fmt.Errorf("font %s: %w", name, err)
			}
			out.Fonts[name] = font
		}
	}

	if xobjs := doc.ResolveDict(mustGet(res, "XObject")); xobjs != nil {
		for _, name := range xobjs.Keys() {
			obj := doc.Resolve(mustGet(xobjs, name))
			switch x := obj.(type) {
			case *raw.StreamObj:
				out.XObjects[name] = x.Dict
			case *raw.DictObj:
				out.XObjects[name] = x
			}
		}
	}
	return out, nil
}

func loadFont(ctx context.Context, doc *raw.Document, dict *raw.DictObj, pipeline *filters.Pipeline) (*Font, error) {
	font := &Font{
		BaseFont:     dict.Name("BaseFont"),
		Subtype:      dict.Name("Subtype"),
		FirstChar:    int(dict.Int("FirstChar", 0)),
		MissingWidth: 500,
		TwoByte:      dict.Name("Subtype") == "Type0",
	}

	if widthsObj, ok := dict.Get("Widths"); ok {
		if arr, isArr := doc.Resolve(widthsObj).(*raw.ArrayObj); isArr {
			font.Widths = make([]float64, 0, arr.Len())
			for _, item := range arr.Items {
				if n, isNum := doc.Resolve(item).(raw.NumberObj); isNum {
					font.Widths = append(font.Widths, n.Float())
				}
			}
		}
	}
	if desc := doc.ResolveDict(mustGet(dict, "FontDescriptor")); desc != nil {
		if mw, ok := desc.Get("MissingWidth"); ok {
			if n, isNum := doc.Resolve(mw).(raw.NumberObj); isNum {
				font.MissingWidth = n.Float()
			}
		}
	}

	if tuObj, ok := dict.Get("ToUnicode"); ok {
		stream, isStream := doc.Resolve(tuObj).(*raw.StreamObj)
		if isStream {
			names, params := filters.ForStream(stream.Dict)
			data, err := pipeline.Decode(ctx, stream.Data, names, params)
			if err != nil {
				return nil, fmt.Errorf("decoding ToUnicode: %w", err)
			}
			font.ToUnicode = parseCMap(data)
		}
	}
	return font, nil
}

// GlyphWidth returns the advance width for a character code in text-space
// units, per thousand.
func (f *Font) GlyphWidth(code uint32) float64 {
	idx := int(code) - f.FirstChar
	if idx >= 0 && idx < len(f.Widths) {
		return f.Widths[idx]
	}
	return f.MissingWidth
}

// Decode maps a PDF string through the font's encoding to readable text.
// Fonts without a ToUnicode CMap fall back to Latin-1, which matches the
// base-14 fonts' standard encodings for the characters that matter here.
func (f *Font) Decode(b []byte) []rune {
	var runes []rune
	if f.TwoByte {
		for i := 0; i+1 < len(b); i += 2 {
			code := uint32(b[i])<<8 | uint32(b[i+1])
			if r, ok := f.ToUnicode[code]; ok {
				runes = append(runes, r)
			} else {
				runes = append(runes, rune(code))
			}
		}
		return runes
	}
	for _, c := range b {
		if r, ok := f.ToUnicode[uint32(c)]; ok {
			runes = append(runes, r)
		} else {
			runes = append(runes, rune(c))
		}
	}
	return runes
}

// Codes splits a PDF string into character codes with their widths.
func (f *Font) Codes(b []byte) []uint32 {
	var codes []uint32
	if f.TwoByte {
		for i := 0; i+1 < len(b); i += 2 {
			codes = append(codes, uint32(b[i])<<8|uint32(b[i+1]))
		}
		return codes
	}
	for _, c := range b {
		codes = append(codes, uint32(c))
	}
	return codes
}

// parseCMap extracts bfchar and bfrange mappings from a ToUnicode CMap.
// PostScript control flow in the stream is ignored; only the mapping
// operators matter.
func parseCMap(data []byte) map[uint32]rune {
	out := make(map[uint32]rune)
	tr := newCMapReader(data)
	for {
		tok, err := tr.next()
		if err != nil {
			return out
		}
		if tok.Type != scanner.TokenKeyword {
			continue
		}
		switch tok.Str {
		case "beginbfchar":
			tr.readBFChar(out)
		case "beginbfrange":
			tr.readBFRange(out)
		}
	}
}

type cmapReader struct {
	s scanner.Scanner
}

func newCMapReader(data []byte) *cmapReader {
	return &cmapReader{s: scanner.New(bytes.NewReader(data), scanner.Config{})}
}

func (c *cmapReader) next() (scanner.Token, error) { return c.s.Next() }

func (c *cmapReader) readBFChar(out map[uint32]rune) {
	for {
		src, err := c.next()
		if err != nil || (src.Type == scanner.TokenKeyword && src.Str == "endbfchar") {
			return
		}
		dst, err := c.next()
		if err != nil {
			return
		}
		if src.Type != scanner.TokenString || dst.Type != scanner.TokenString {
			continue
		}
		out[codeOf(src.Bytes)] = runeOf(dst.Bytes)
	}
}

func (c *cmapReader) readBFRange(out map[uint32]rune) {
	for {
		lo, err := c.next()
		if err != nil || (lo.Type == scanner.TokenKeyword && lo.Str == "endbfrange") {
			return
		}
		hi, err := c.next()
		if err != nil {
			return
		}
		dst, err := c.next()
		if err != nil {
			return
		}
		if lo.Type != scanner.TokenString || hi.Type != scanner.TokenString {
			continue
		}
		start, end := codeOf(lo.Bytes), codeOf(hi.Bytes)
		if end < start || end-start > 0xFFFF {
			continue
		}
		switch dst.Type {
		case scanner.TokenString:
			base := runeOf(dst.Bytes)
			for code := start; code <= end; code++ {
				out[code] = base + rune(code-start)
			}
		case scanner.TokenArrayOpen:
			for code := start; ; code++ {
				item, err := c.next()
				if err != nil || item.Type == scanner.TokenArrayClose {
					return
				}
				if item.Type == scanner.TokenString && code <= end {
					out[code] = runeOf(item.Bytes)
				}
			}
		}
	}
}

func codeOf(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func runeOf(b []byte) rune {
	var v rune
	for _, c := range b {
		v = v<<8 | rune(c)
	}
	return v
}
