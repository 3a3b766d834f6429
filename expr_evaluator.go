package paramgrid

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

const exprEngine = "expr"

// ExprEvaluatorOption configures NewExprEvaluator.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache reuses programs compiled by other validators.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes the helpers of registry to expressions.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.registry = registry.Clone()
	}
}

type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator returns the expr-lang engine, the default for rules.
// Unknown identifiers evaluate to nil, so a rule may name a label that only
// some records carry.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Engine() string { return exprEngine }

func (e *exprEvaluator) Compile(expr string) (CompiledRule, error) {
	program, err := cachedProgram(e.cache, exprEngine, expr, e.compile)
	if err != nil {
		return nil, err
	}
	return exprRule{program: program}, nil
}

func (e *exprEvaluator) compile(expr string) (*exprvm.Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	options := []exprlang.Option{exprlang.AllowUndefinedVariables()}
	if e.registry != nil {
		options = append(options, exprlang.Function(bindCall, e.registry.dispatch))
		for _, name := range e.registry.Names() {
			options = append(options, exprlang.Function(name, e.registry.helper(name)))
		}
	}
	return exprlang.Compile(expr, options...)
}

type exprRule struct {
	program *exprvm.Program
}

func (r exprRule) Evaluate(rc RuleContext) (any, error) {
	return exprlang.Run(r.program, rc.Bindings())
}
