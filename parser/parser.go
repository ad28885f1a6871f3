package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"pdfcensor/filters"
	"pdfcensor/ir/raw"
	"pdfcensor/observability"
	"pdfcensor/recovery"
	"pdfcensor/scanner"
	"pdfcensor/xref"
)

// ErrEncrypted is returned for documents that declare an /Encrypt
// dictionary; their contents cannot be read.
var ErrEncrypted = errors.New("document is encrypted")

type Config struct {
	XRef     xref.Config
	Limits   filters.Limits
	Scanner  scanner.Config
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// DocumentParser turns a byte source into a raw.Document: it resolves the
// cross-reference table, loads every reachable object, and lifts the Info
// dictionary into structured metadata.
type DocumentParser struct {
	cfg Config
}

func New(cfg Config) *DocumentParser {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.Strict()
	}
	if cfg.Scanner.Recovery == nil {
		cfg.Scanner.Recovery = cfg.Recovery
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	version, err := readVersion(r)
	if err != nil {
		return nil, err
	}

	resolver := xref.NewResolver(p.cfg.XRef)
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolving cross-reference table: %w", err)
	}

	trailer, err := parseTrailer(resolver.Trailer(), p.cfg.Scanner)
	if err != nil {
		return nil, fmt.Errorf("parsing trailer: %w", err)
	}
	if _, encrypted := trailer.Get("Encrypt"); encrypted {
		return nil, ErrEncrypted
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: trailer,
		Version: version,
	}

	loader := NewObjectLoader(scanner.New(r, p.cfg.Scanner), table)
	for _, num := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, err := loader.Load(num)
		if err != nil {
			loc := recovery.Location{ObjectNum: num, Component: "parser"}
			if p.cfg.Recovery.OnError(err, loc) == recovery.ActionFail {
				return nil, err
			}
			p.cfg.Logger.Warn("skipping unreadable object",
				observability.Int("object", num),
				observability.Error("error", err))
			continue
		}
		_, gen, _ := table.Lookup(num)
		doc.Objects[raw.ObjectRef{Num: num, Gen: gen}] = obj
	}

	if _, ok := doc.Root(); !ok {
		return nil, errors.New("trailer has no document catalog")
	}

	p.liftInfo(doc)
	p.cfg.Logger.Debug("document parsed",
		observability.Int("objects", len(doc.Objects)),
		observability.String("version", version))
	return doc, nil
}

// liftInfo copies the Info dictionary, when present, into DocumentMetadata.
func (p *DocumentParser) liftInfo(doc *raw.Document) {
	infoObj, ok := doc.Trailer.Get("Info")
	if !ok {
		return
	}
	if ref, isRef := infoObj.(raw.RefObj); isRef {
		doc.InfoRef = ref.R
	}
	info := doc.ResolveDict(infoObj)
	if info == nil {
		return
	}
	doc.Info = info

	md := &doc.Metadata
	for _, key := range info.Keys() {
		obj, _ := info.Get(key)
		str, isStr := doc.Resolve(obj).(raw.StringObj)
		if !isStr {
			continue
		}
		value := decodeTextString(str.Bytes)
		switch key {
		case "Title":
			md.Title = value
		case "Author":
			md.Author = value
		case "Subject":
			md.Subject = value
		case "Keywords":
			md.Keywords = value
		case "Creator":
			md.Creator = value
		case "Producer":
			md.Producer = value
		case "CreationDate":
			md.CreationDate = value
		case "ModDate":
			md.ModDate = value
		default:
			if md.Custom == nil {
				md.Custom = make(map[string]string)
			}
			md.Custom[key] = value
		}
	}
}

// decodeTextString interprets a PDF text string: UTF-16BE when it carries a
// BOM, PDFDocEncoding (treated as Latin-1) otherwise.
func decodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		var buf bytes.Buffer
		for i := 2; i+1 < len(b); i += 2 {
			buf.WriteRune(rune(b[i])<<8 | rune(b[i+1]))
		}
		return buf.String()
	}
	var buf bytes.Buffer
	for _, c := range b {
		buf.WriteRune(rune(c))
	}
	return buf.String()
}

func parseTrailer(data []byte, cfg scanner.Config) (*raw.DictObj, error) {
	if len(data) == 0 {
		return nil, errors.New("empty trailer")
	}
	tr := newTokenReader(scanner.New(bytes.NewReader(data), cfg))
	obj, err := ParseObject(tr)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return dict, nil
}

func readVersion(r io.ReaderAt) (string, error) {
	buf := make([]byte, 16)
	n, err := r.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return "", err
	}
	buf = buf[:n]
	if !bytes.HasPrefix(buf, []byte("%PDF-")) {
		return "", errors.New("missing PDF header")
	}
	rest := buf[len("%PDF-"):]
	end := 0
	for end < len(rest) && rest[end] != '\r' && rest[end] != '\n' && rest[end] != ' ' {
		end++
	}
	return string(rest[:end]), nil
}
