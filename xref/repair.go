package xref

import (
	"errors"
	"regexp"
	"strconv"
)

var objHeaderRe = regexp.MustCompile(`(?m)^[\r\n]?(\d+)\s+(\d+)\s+obj\b`)

// Repair rebuilds a cross-reference table by scanning the file for
// "N G obj" headers. Later definitions of the same object number win,
// matching incremental-update semantics.
func Repair(data []byte) (Table, error) {
	matches := objHeaderRe.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return nil, errors.New("repair: no object headers found")
	}
	entries := make(map[int]entry, len(matches))
	for _, m := range matches {
		num, err := strconv.Atoi(string(data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		gen, err := strconv.Atoi(string(data[m[4]:m[5]]))
		if err != nil {
			continue
		}
		start := m[0]
		// the (?m) anchor may include the EOL that precedes the header
		for start < m[2] && (data[start] == '\r' || data[start] == '\n') {
			start++
		}
		entries[num] = entry{offset: int64(start), gen: gen}
	}
	return &table{entries: entries}, nil
}
