package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Table holds object offsets for a cross-reference table.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	Objects() []int
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	Trailer() []byte
}

type Config struct {
	MaxChainDepth int // limit on /Prev hops; 0 means a sane default
	Repair        bool
}

// NewResolver returns a classic-table resolver that follows /Prev chains and,
// when cfg.Repair is set, falls back to scanning object headers if the table
// is missing or damaged.
func NewResolver(cfg Config) Resolver {
	if cfg.MaxChainDepth <= 0 {
		cfg.MaxChainDepth = 32
	}
	return &tableResolver{cfg: cfg}
}

type tableResolver struct {
	cfg     Config
	trailer []byte
}

type entry struct {
	offset int64
	gen    int
}

type table struct {
	entries map[int]entry
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (r *tableResolver) Trailer() []byte { return r.trailer }

func (r *tableResolver) Resolve(ctx context.Context, src io.ReaderAt) (Table, error) {
	data := readAll(src)
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	tbl, err := r.resolveFromStartxref(data)
	if err != nil {
		if r.cfg.Repair {
			if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
				r.trailer = data[idx+len("trailer"):]
			}
			return Repair(data)
		}
		return nil, err
	}
	return tbl, nil
}

func (r *tableResolver) resolveFromStartxref(data []byte) (Table, error) {
	start := bytes.LastIndex(data, []byte("startxref"))
	if start < 0 {
		return nil, errors.New("startxref not found")
	}
	offset, err := firstInt(data[start+len("startxref"):])
	if err != nil {
		return nil, fmt.Errorf("parse startxref: %w", err)
	}

	merged := make(map[int]entry)
	seen := make(map[int64]bool)
	for hop := 0; ; hop++ {
		if hop >= r.cfg.MaxChainDepth {
			return nil, errors.New("xref chain too deep")
		}
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}
		if seen[offset] {
			return nil, errors.New("xref chain loop")
		}
		seen[offset] = true

		section, trailerBytes, err := parseSection(data[offset:])
		if err != nil {
			return nil, err
		}
		// earlier-in-chain sections are older; never overwrite newer entries
		for num, e := range section {
			if _, ok := merged[num]; !ok {
				merged[num] = e
			}
		}
		if r.trailer == nil {
			r.trailer = trailerBytes
		}
		prev, ok := findPrev(trailerBytes)
		if !ok {
			break
		}
		offset = prev
	}
	if len(merged) == 0 {
		return nil, errors.New("xref table empty")
	}
	return &table{entries: merged}, nil
}

func parseSection(data []byte) (map[int]entry, []byte, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, nil, errors.New("xref keyword not found at offset")
	}
	entries := make(map[int]entry)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, nil, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, nil, fmt.Errorf("parse xref count: %w", err)
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, nil, errors.New("unexpected end of xref section")
			}
			fields := strings.Fields(strings.TrimSpace(sc.Text()))
			if len(fields) < 3 {
				return nil, nil, fmt.Errorf("invalid xref entry: %q", sc.Text())
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, nil, fmt.Errorf("parse xref gen: %w", err)
			}
			if fields[2] != "n" {
				continue // free entry
			}
			entries[startObj+i] = entry{offset: off, gen: gen}
		}
	}
	trailerIdx := bytes.Index(data, []byte("trailer"))
	if trailerIdx < 0 {
		return entries, nil, nil
	}
	// Trailer() bytes start at the dictionary, past the keyword, on both the
	// table and the repair path.
	body := trailerIdx + len("trailer")
	end := bytes.Index(data[body:], []byte("startxref"))
	if end < 0 {
		end = len(data) - body
	}
	return entries, data[body : body+end], nil
}

// findPrev extracts the /Prev offset from raw trailer bytes. Doing this
// lexically avoids a circular dependency on the object parser.
func findPrev(trailer []byte) (int64, bool) {
	idx := bytes.Index(trailer, []byte("/Prev"))
	if idx < 0 {
		return 0, false
	}
	v, err := firstInt(trailer[idx+len("/Prev"):])
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstInt(data []byte) (int64, error) {
	i := 0
	for i < len(data) && (data[i] == ' ' || data[i] == '\r' || data[i] == '\n' || data[i] == '\t') {
		i++
	}
	j := i
	for j < len(data) && data[j] >= '0' && data[j] <= '9' {
		j++
	}
	if j == i {
		return 0, errors.New("no integer found")
	}
	return strconv.ParseInt(string(data[i:j]), 10, 64)
}

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil || int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
