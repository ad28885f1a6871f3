package filters

import (
	"bytes"
	"context"
	"testing"

	"pdfcensor/ir/raw"
)

func TestFlateRoundTrip(t *testing.T) {
	plain := []byte("BT /F0 12 Tf 72 720 Td (Nombre: Ana) Tj ET")
	encoded := FlateEncode(plain)
	got, err := NewFlateDecoder().Decode(context.Background(), encoded, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	got, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6C 6C 6F>"), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "Hello" {
		t.Fatalf("got %q", got)
	}
}

func TestASCIIHexDecodeOddLength(t *testing.T) {
	got, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("412>"), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, []byte{0x41, 0x20}) {
		t.Fatalf("got %x", got)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal "AB", then 'C' repeated 4 times (257-253), then EOD
	in := []byte{1, 'A', 'B', 253, 'C', 128}
	got, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "ABCCCC" {
		t.Fatalf("got %q", got)
	}
}

func TestPipelineChainsFilters(t *testing.T) {
	plain := []byte("content stream data")
	stage1 := FlateEncode(plain)
	var hexed bytes.Buffer
	for _, b := range stage1 {
		hexed.WriteString(string("0123456789ABCDEF"[b>>4]) + string("0123456789ABCDEF"[b&0xF]))
	}
	hexed.WriteByte('>')

	p := Default(Limits{})
	got, err := p.Decode(context.Background(), hexed.Bytes(), []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q", got)
	}
}

func TestPipelineRejectsUnknownFilter(t *testing.T) {
	p := Default(Limits{})
	if _, err := p.Decode(context.Background(), nil, []string{"JBIG2Decode"}, nil); err == nil {
		t.Fatalf("expected error for unsupported filter")
	}
}

func TestPipelineEnforcesSizeLimit(t *testing.T) {
	plain := bytes.Repeat([]byte("x"), 4096)
	p := Default(Limits{MaxDecompressedSize: 128})
	if _, err := p.Decode(context.Background(), FlateEncode(plain), []string{"FlateDecode"}, nil); err == nil {
		t.Fatalf("expected size limit error")
	}
}

func TestForStream(t *testing.T) {
	dict := raw.Dict()
	dict.Set("Filter", raw.Name("FlateDecode"))
	names, params := ForStream(dict)
	if len(names) != 1 || names[0] != "FlateDecode" || params != nil {
		t.Fatalf("got %v %v", names, params)
	}

	arr := raw.NewArray(raw.Name("ASCII85Decode"), raw.Name("FlateDecode"))
	dict.Set("Filter", arr)
	names, _ = ForStream(dict)
	if len(names) != 2 || names[1] != "FlateDecode" {
		t.Fatalf("got %v", names)
	}
}

func TestPredictorUpRows(t *testing.T) {
	// two rows of 3 bytes, filter type 2 (Up)
	data := []byte{
		0, 1, 2, 3, // row 1: None
		2, 1, 1, 1, // row 2: Up -> 2 3 4
	}
	params := rawDict(map[string]int64{"Predictor": 12, "Columns": 3})
	got, err := applyPredictor(data, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	want := []byte{1, 2, 3, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func rawDict(kv map[string]int64) *raw.DictObj {
	d := raw.Dict()
	for k, v := range kv {
		d.Set(k, raw.Int(v))
	}
	return d
}
