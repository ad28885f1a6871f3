package fields

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"pdfcensor/coords"
	"pdfcensor/extract"
)

// Kind names a preservable field.
type Kind int

const (
	KindGender Kind = iota
	KindAge
)

func (k Kind) String() string {
	switch k {
	case KindGender:
		return "gender"
	case KindAge:
		return "age"
	default:
		return "unknown"
	}
}

// Field is a detected value with the bounding box of the run it came from.
type Field struct {
	Kind  Kind
	Value string
	BBox  coords.Rect
}

// Matcher recognizes one field kind inside a text run. Implementations see
// NFC-normalized text.
type Matcher interface {
	Kind() Kind
	Match(text string) (value string, ok bool)
}

// RegexpMatcher matches a compiled pattern and reports a capture group (0
// for the whole match) as the field value.
type RegexpMatcher struct {
	kind  Kind
	re    *regexp.Regexp
	group int
}

func NewRegexpMatcher(kind Kind, re *regexp.Regexp, group int) *RegexpMatcher {
	return &RegexpMatcher{kind: kind, re: re, group: group}
}

func (m *RegexpMatcher) Kind() Kind { return m.kind }

func (m *RegexpMatcher) Match(text string) (string, bool) {
	groups := m.re.FindStringSubmatch(text)
	if groups == nil || m.group >= len(groups) {
		return "", false
	}
	return groups[m.group], true
}

var (
	genderPattern = regexp.MustCompile(`\b(Masculino|Femenino)\b`)
	agePattern    = regexp.MustCompile(`\((\d+) años\)`)
)

// GenderMatcher recognizes the Spanish gender labels.
func GenderMatcher() Matcher { return NewRegexpMatcher(KindGender, genderPattern, 1) }

// AgeMatcher recognizes a parenthesized age and keeps the parenthesized
// form as the value.
func AgeMatcher() Matcher { return NewRegexpMatcher(KindAge, agePattern, 0) }

// Defaults is the stock matcher set.
func Defaults() []Matcher { return []Matcher{GenderMatcher(), AgeMatcher()} }

// Detect runs the matchers over the runs in reading order. At most one
// field per kind is returned; the first run that matches a kind wins.
// Run text is NFC-normalized first so composed and decomposed forms of the
// same word match alike.
func Detect(runs []extract.TextRun, matchers []Matcher) []Field {
	ordered := extract.ReadingOrder(runs)
	found := make(map[Kind]bool)
	var out []Field
	for _, run := range ordered {
		text := norm.NFC.String(run.Text)
		for _, m := range matchers {
			if found[m.Kind()] {
				continue
			}
			value, ok := m.Match(text)
			if !ok {
				continue
			}
			found[m.Kind()] = true
			out = append(out, Field{Kind: m.Kind(), Value: value, BBox: run.BBox})
		}
		if len(found) == len(matchers) {
			break
		}
	}
	return out
}
