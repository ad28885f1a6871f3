package fields

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// ScriptMatcher evaluates a user-supplied JavaScript snippet against each
// run, so new label vocabularies can be added without recompiling. The
// script must define
//
//	function match(text) { ... }
//
// returning the matched value as a string, or null when the run does not
// contain the field. The runtime is not safe for concurrent use, so calls
// are serialized.
type ScriptMatcher struct {
	kind Kind
	mu   sync.Mutex
	vm   *goja.Runtime
	fn   goja.Callable
}

func NewScriptMatcher(kind Kind, source string) (*ScriptMatcher, error) {
	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("compiling match script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("match"))
	if !ok {
		return nil, fmt.Errorf("match script defines no match(text) function")
	}
	return &ScriptMatcher{kind: kind, vm: vm, fn: fn}, nil
}

func (m *ScriptMatcher) Kind() Kind { return m.kind }

func (m *ScriptMatcher) Match(text string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, err := m.fn(goja.Undefined(), m.vm.ToValue(text))
	if err != nil {
		return "", false
	}
	if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
		return "", false
	}
	s := val.String()
	if s == "" {
		return "", false
	}
	return s, true
}
