package parser

import (
	"errors"
	"fmt"
	"io"

	"pdfcensor/ir/raw"
	"pdfcensor/scanner"
)

// tokenReader wraps a scanner with single-token pushback, which the
// recursive-descent object parser needs for lookahead.
type tokenReader struct {
	s      scanner.Scanner
	pushed []scanner.Token
}

func newTokenReader(s scanner.Scanner) *tokenReader { return &tokenReader{s: s} }

func (tr *tokenReader) next() (scanner.Token, error) {
	if n := len(tr.pushed); n > 0 {
		tok := tr.pushed[n-1]
		tr.pushed = tr.pushed[:n-1]
		return tok, nil
	}
	return tr.s.Next()
}

func (tr *tokenReader) unread(tok scanner.Token) { tr.pushed = append(tr.pushed, tok) }

func (tr *tokenReader) setStreamLengthHint(n int64) { tr.s.SetNextStreamLength(n) }

// ParseObject reads one complete object from the token stream.
func ParseObject(tr *tokenReader) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.Int(tok.Int), nil
		}
		return raw.Float(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenName:
		return raw.Name(tok.Str), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenRef:
		return raw.Ref(tok.Num, tok.Gen), nil
	case scanner.TokenArrayOpen:
		return parseArray(tr)
	case scanner.TokenDictOpen:
		return parseDict(tr)
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
	}
}

func parseArray(tr *tokenReader) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := tr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("unterminated array")
			}
			return nil, err
		}
		if tok.Type == scanner.TokenArrayClose {
			return arr, nil
		}
		tr.unread(tok)
		item, err := ParseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("unterminated dictionary")
			}
			return nil, err
		}
		if tok.Type == scanner.TokenDictClose {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key must be a name, got %q at offset %d", tok.Str, tok.Pos)
		}
		value, err := ParseObject(tr)
		if err != nil {
			return nil, err
		}
		dict.Set(tok.Str, value)
	}
}
