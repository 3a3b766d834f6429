package paramgrid

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"unicode"
)

// Function is a helper rule expressions may call.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers exposed to rule expressions. Each helper
// is callable by name and through call(name, args...).
type FunctionRegistry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{fns: map[string]Function{}}
}

// Register adds fn under name. The name must be an identifier that does not
// collide with a record binding or an existing helper.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	switch {
	case fn == nil:
		return fmt.Errorf("paramgrid: function %q is nil", name)
	case !isIdentifier(name):
		return fmt.Errorf("paramgrid: function name %q is not an identifier", name)
	case slices.Contains(reservedBindings, name):
		return fmt.Errorf("paramgrid: function name %q is a record binding", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fns == nil {
		r.fns = map[string]Function{}
	}
	if _, dup := r.fns[name]; dup {
		return fmt.Errorf("paramgrid: function %q already registered", name)
	}
	r.fns[name] = fn
	return nil
}

// Clone returns an independent registry with the same helpers.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{fns: maps.Clone(r.fns)}
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("paramgrid: no functions registered")
	}
	r.mu.RLock()
	fn, ok := r.fns[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("paramgrid: function %q not registered", name)
	}
	return fn(args...)
}

// Names lists the registered helpers in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.fns))
}

// bindings returns call plus one closure per helper, for engines that accept
// Go functions as variables.
func (r *FunctionRegistry) bindings() map[string]any {
	if r == nil {
		return nil
	}
	out := map[string]any{bindCall: r.dispatch}
	for _, name := range r.Names() {
		out[name] = r.helper(name)
	}
	return out
}

// dispatch implements call(name, args...).
func (r *FunctionRegistry) dispatch(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("paramgrid: call requires a function name")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("paramgrid: call name must be a string, got %T", args[0])
	}
	return r.Call(name, args[1:]...)
}

func (r *FunctionRegistry) helper(name string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		if c == '_' || unicode.IsLetter(c) || (i > 0 && unicode.IsDigit(c)) {
			continue
		}
		return false
	}
	return true
}
