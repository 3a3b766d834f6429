//go:build js_eval

package paramgrid

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	jsOptions
}

// NewJSEvaluator returns an engine that evaluates rules as JavaScript
// expressions with goja. Each evaluation runs in a fresh runtime.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{jsOptions: collectJSOptions(opts)}
}

func (e *jsEvaluator) Engine() string { return jsEngine }

func (e *jsEvaluator) Compile(expr string) (CompiledRule, error) {
	program, err := cachedProgram(e.cache, jsEngine, expr, compileJS)
	if err != nil {
		return nil, err
	}
	return jsRule{program: program, registry: e.registry}, nil
}

// compileJS wraps expr in a function body so statements like let are scoped
// to one evaluation.
func compileJS(expr string) (*goja.Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	return goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expr), true)
}

type jsRule struct {
	program  *goja.Program
	registry *FunctionRegistry
}

func (r jsRule) Evaluate(rc RuleContext) (any, error) {
	vm := goja.New()
	for name, v := range rc.Bindings() {
		if err := vm.Set(name, v); err != nil {
			return nil, err
		}
	}
	for name, fn := range r.registry.bindings() {
		if err := vm.Set(name, fn); err != nil {
			return nil, err
		}
	}
	out, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, err
	}
	return out.Export(), nil
}

func jsEvaluatorAvailable() bool { return true }
