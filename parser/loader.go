package parser

import (
	"fmt"
	"io"

	"pdfcensor/ir/raw"
	"pdfcensor/scanner"
	"pdfcensor/xref"
)

// ObjectLoader fetches indirect objects on demand by seeking to their xref
// offset. Loaded objects are memoized; reference cycles through /Length are
// broken by the in-flight set.
type ObjectLoader struct {
	scanner  scanner.Scanner
	table    xref.Table
	cache    map[raw.ObjectRef]raw.Object
	inFlight map[raw.ObjectRef]bool
}

func NewObjectLoader(s scanner.Scanner, table xref.Table) *ObjectLoader {
	return &ObjectLoader{
		scanner:  s,
		table:    table,
		cache:    make(map[raw.ObjectRef]raw.Object),
		inFlight: make(map[raw.ObjectRef]bool),
	}
}

// Load reads the object with the given number, resolving an indirect stream
// /Length when needed.
func (l *ObjectLoader) Load(num int) (raw.Object, error) {
	offset, gen, ok := l.table.Lookup(num)
	if !ok {
		return raw.NullObj{}, nil
	}
	ref := raw.ObjectRef{Num: num, Gen: gen}
	if obj, ok := l.cache[ref]; ok {
		return obj, nil
	}
	if l.inFlight[ref] {
		return nil, fmt.Errorf("object %s references itself", ref)
	}
	l.inFlight[ref] = true
	defer delete(l.inFlight, ref)

	obj, err := l.loadAt(offset, num)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	l.cache[ref] = obj
	return obj, nil
}

func (l *ObjectLoader) loadAt(offset int64, wantNum int) (raw.Object, error) {
	if err := l.scanner.SeekTo(offset); err != nil {
		return nil, err
	}
	tr := newTokenReader(l.scanner)

	numTok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt {
		return nil, fmt.Errorf("expected object number at offset %d", offset)
	}
	if wantNum >= 0 && int(numTok.Int) != wantNum {
		return nil, fmt.Errorf("offset %d holds object %d, wanted %d", offset, numTok.Int, wantNum)
	}
	genTok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return nil, fmt.Errorf("expected generation number at offset %d", offset)
	}
	kwTok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
		return nil, fmt.Errorf("expected obj keyword at offset %d", offset)
	}

	body, err := ParseObject(tr)
	if err != nil {
		return nil, err
	}

	// A dict followed by the stream keyword is a stream object. The scanner
	// consumes the keyword and payload as one token, so the length hint has
	// to be in place before the next read.
	dict, isDict := body.(*raw.DictObj)
	if isDict {
		length, err := l.streamLength(dict)
		if err != nil {
			return nil, err
		}
		tr.setStreamLengthHint(length)
		tok, err := tr.next()
		tr.setStreamLengthHint(-1)
		if err == nil && tok.Type == scanner.TokenStream {
			return raw.NewStream(dict, tok.Bytes), nil
		}
		if err == nil {
			tr.unread(tok)
		} else if err != io.EOF {
			return nil, err
		}
	}
	return body, nil
}

// streamLength resolves /Length, loading it as an indirect object if needed.
func (l *ObjectLoader) streamLength(dict *raw.DictObj) (int64, error) {
	obj, ok := dict.Get("Length")
	if !ok {
		return -1, nil
	}
	if ref, isRef := obj.(raw.RefObj); isRef {
		savedPos := l.scanner.Position()
		resolved, err := l.Load(ref.R.Num)
		if err != nil {
			return 0, fmt.Errorf("resolving stream length: %w", err)
		}
		if err := l.scanner.SeekTo(savedPos); err != nil {
			return 0, err
		}
		obj = resolved
	}
	num, isNum := obj.(raw.NumberObj)
	if !isNum || !num.IsInt {
		return -1, nil
	}
	return num.I, nil
}
