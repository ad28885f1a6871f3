package raw

import (
	"sort"
	"strconv"
)

// AppendObject serializes obj in PDF syntax onto dst. Dictionary keys are
// written in sorted order so output is deterministic.
func AppendObject(dst []byte, obj Object) []byte {
	switch o := obj.(type) {
	case NameObj:
		return appendName(dst, o.Val)
	case NumberObj:
		if o.IsInt {
			return strconv.AppendInt(dst, o.I, 10)
		}
		return appendReal(dst, o.F)
	case BoolObj:
		if o.V {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case NullObj:
		return append(dst, "null"...)
	case StringObj:
		if o.Hex {
			return appendHexString(dst, o.Bytes)
		}
		return appendLiteralString(dst, o.Bytes)
	case RefObj:
		dst = strconv.AppendInt(dst, int64(o.R.Num), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(o.R.Gen), 10)
		return append(dst, " R"...)
	case *ArrayObj:
		dst = append(dst, '[')
		for i, item := range o.Items {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = AppendObject(dst, item)
		}
		return append(dst, ']')
	case *DictObj:
		return AppendDict(dst, o)
	case *StreamObj:
		dst = AppendDict(dst, o.Dict)
		dst = append(dst, "\nstream\n"...)
		dst = append(dst, o.Data...)
		return append(dst, "\nendstream"...)
	default:
		return append(dst, "null"...)
	}
}

func AppendDict(dst []byte, d *DictObj) []byte {
	keys := d.Keys()
	sort.Strings(keys)
	dst = append(dst, "<<"...)
	for _, k := range keys {
		dst = append(dst, ' ')
		dst = appendName(dst, k)
		dst = append(dst, ' ')
		v, _ := d.Get(k)
		dst = AppendObject(dst, v)
	}
	return append(dst, " >>"...)
}

func appendName(dst []byte, name string) []byte {
	dst = append(dst, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c > 0x7E || c == '#' || isNameDelim(c) {
			dst = append(dst, '#', hexDigit(c>>4), hexDigit(c&0x0F))
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

func isNameDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'A' + v - 10
}

func appendLiteralString(dst []byte, b []byte) []byte {
	dst = append(dst, '(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, ')')
}

func appendHexString(dst []byte, b []byte) []byte {
	dst = append(dst, '<')
	for _, c := range b {
		dst = append(dst, hexDigit(c>>4), hexDigit(c&0x0F))
	}
	return append(dst, '>')
}

// appendReal trims trailing zeros the way content streams usually carry
// coordinates.
func appendReal(dst []byte, f float64) []byte {
	s := strconv.FormatFloat(f, 'f', 5, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return append(dst, s...)
}
