package recovery

// Strategy decides how the scanner and parser react to damaged documents.
// Returning ActionFix or ActionSkip lets a batch run continue past a broken
// file instead of aborting it.
type Strategy interface {
	OnError(err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
)

// Strict fails on the first structural error.
func Strict() Strategy { return strictStrategy{} }

type strictStrategy struct{}

func (strictStrategy) OnError(error, Location) Action { return ActionFail }

// Lenient patches over recoverable damage (unterminated strings, missing
// stream EOLs) and skips objects it cannot make sense of.
func Lenient() Strategy { return lenientStrategy{} }

type lenientStrategy struct{}

func (lenientStrategy) OnError(error, Location) Action { return ActionFix }
