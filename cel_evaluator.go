package paramgrid

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

const celEngine = "cel"

// maxCallArgs bounds the arity of call(name, ...) since CEL declarations
// have no variadic form.
const maxCallArgs = 4

// CELEvaluatorOption configures NewCELEvaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache reuses programs compiled by other validators.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry through call(name, args...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	env      *celgo.Env
	envErr   error
}

// NewCELEvaluator returns an engine for Common Expression Language rules.
//
// Records carry whatever labels the grid declares, so expressions are parsed
// without type checking and identifiers resolve against the record at
// evaluation time. Naming a label the record lacks is an evaluation error.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	var envOpts []celgo.EnvOption
	if e.registry != nil {
		envOpts = append(envOpts, celgo.Function(bindCall, e.callOverloads()...))
	}
	e.env, e.envErr = celgo.NewEnv(envOpts...)
	return e
}

func (e *celEvaluator) Engine() string { return celEngine }

func (e *celEvaluator) Compile(expr string) (CompiledRule, error) {
	program, err := cachedProgram(e.cache, celEngine, expr, e.compile)
	if err != nil {
		return nil, err
	}
	return celRule{program: program}, nil
}

func (e *celEvaluator) compile(expr string) (celgo.Program, error) {
	if e.envErr != nil {
		return nil, e.envErr
	}
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	ast, issues := e.env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return e.env.Program(ast)
}

type celRule struct {
	program celgo.Program
}

func (r celRule) Evaluate(rc RuleContext) (any, error) {
	out, _, err := r.program.Eval(rc.Bindings())
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// callOverloads declares call(name) through call(name, a, b, c, d), all
// bound to the registry.
func (e *celEvaluator) callOverloads() []celgo.FunctionOpt {
	binding := celgo.FunctionBinding(e.callRegistry)
	out := make([]celgo.FunctionOpt, 0, maxCallArgs+1)
	args := []*celgo.Type{celgo.StringType}
	for n := 0; n <= maxCallArgs; n++ {
		out = append(out, celgo.Overload(fmt.Sprintf("call_%d", n), append([]*celgo.Type(nil), args...), celgo.DynType, binding))
		args = append(args, celgo.DynType)
	}
	return out
}

func (e *celEvaluator) callRegistry(values ...ref.Val) ref.Val {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v.Value()
	}
	result, err := e.registry.dispatch(args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
