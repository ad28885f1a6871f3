package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"pdfcensor/ir/raw"
	"pdfcensor/scanner"
)

// Operation is one content-stream instruction: its operands in order, then
// the operator. Inline images (BI..ID..EI) are folded into a single
// operation carrying the image parameters as operands and the payload in
// ImageData.
type Operation struct {
	Operator  string
	Operands  []raw.Object
	ImageData []byte
}

// ParseContent tokenizes a decoded content stream into operations.
func ParseContent(data []byte) ([]Operation, error) {
	var ops []Operation
	var operands []raw.Object
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("content stream at offset %d: %w", s.Position(), err)
		}
		switch tok.Type {
		case scanner.TokenNumber:
			if tok.IsInt {
				operands = append(operands, raw.Int(tok.Int))
			} else {
				operands = append(operands, raw.Float(tok.Float))
			}
		case scanner.TokenName:
			operands = append(operands, raw.Name(tok.Str))
		case scanner.TokenString:
			operands = append(operands, raw.Str(tok.Bytes))
		case scanner.TokenBoolean:
			operands = append(operands, raw.Bool(tok.Bool))
		case scanner.TokenNull:
			operands = append(operands, raw.NullObj{})
		case scanner.TokenArrayOpen:
			arr, err := parseContentArray(s)
			if err != nil {
				return nil, err
			}
			operands = append(operands, arr)
		case scanner.TokenDictOpen:
			dict, err := parseContentDict(s)
			if err != nil {
				return nil, err
			}
			operands = append(operands, dict)
		case scanner.TokenInlineImage:
			// the ID keyword swallowed the payload; operands hold the
			// BI parameter dict entries
			ops = append(ops, Operation{Operator: "BI", Operands: operands, ImageData: tok.Bytes})
			operands = nil
		case scanner.TokenKeyword:
			if tok.Str == "BI" {
				// parameters arrive as loose name/value tokens before ID
				continue
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
			operands = nil
		default:
			return nil, fmt.Errorf("unexpected token in content stream at offset %d", tok.Pos)
		}
	}
	return ops, nil
}

func parseContentArray(s scanner.Scanner) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, errors.New("unterminated array in content stream")
		}
		if tok.Type == scanner.TokenArrayClose {
			return arr, nil
		}
		obj, err := contentOperand(s, tok)
		if err != nil {
			return nil, err
		}
		arr.Append(obj)
	}
}

func parseContentDict(s scanner.Scanner) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, errors.New("unterminated dictionary in content stream")
		}
		if tok.Type == scanner.TokenDictClose {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, errors.New("dictionary key must be a name")
		}
		valTok, err := s.Next()
		if err != nil {
			return nil, errors.New("dictionary missing value")
		}
		val, err := contentOperand(s, valTok)
		if err != nil {
			return nil, err
		}
		dict.Set(tok.Str, val)
	}
}

func contentOperand(s scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.Int(tok.Int), nil
		}
		return raw.Float(tok.Float), nil
	case scanner.TokenName:
		return raw.Name(tok.Str), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenArrayOpen:
		return parseContentArray(s)
	case scanner.TokenDictOpen:
		return parseContentDict(s)
	default:
		return nil, fmt.Errorf("unexpected token in content stream at offset %d", tok.Pos)
	}
}

// EncodeContent serializes operations back into content-stream bytes.
func EncodeContent(ops []Operation) []byte {
	var out []byte
	for _, op := range ops {
		if op.Operator == "BI" {
			out = append(out, "BI"...)
			for i := 0; i+1 < len(op.Operands); i += 2 {
				out = append(out, ' ')
				out = raw.AppendObject(out, op.Operands[i])
				out = append(out, ' ')
				out = raw.AppendObject(out, op.Operands[i+1])
			}
			out = append(out, " ID "...)
			out = append(out, op.ImageData...)
			out = append(out, " EI\n"...)
			continue
		}
		for _, operand := range op.Operands {
			out = raw.AppendObject(out, operand)
			out = append(out, ' ')
		}
		out = append(out, op.Operator...)
		out = append(out, '\n')
	}
	return out
}
