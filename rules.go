package paramgrid

import (
	"context"
	"fmt"
	"strings"
)

// RuleLevel decides whether a failed rule blocks the operation.
type RuleLevel string

const (
	RuleError RuleLevel = "error"
	RuleWarn  RuleLevel = "warn"
)

// Rule is a boolean expression checked against every proposed record.
//
// The expression sees the record as variables. value holds the payload and
// labels maps label names to their values. Each label is also bound under
// its own name. param, number_dims and state describe the parameter the
// record is proposed for. Helpers from a FunctionRegistry are callable by
// name or through call(name, args...). A rule passes when the expression
// returns true.
type Rule struct {
	// Param restricts the rule to one parameter. Empty applies it to all.
	Param   string
	Expr    string
	Message string
	Level   RuleLevel
}

// RuleValidatorOption configures a RuleValidator.
type RuleValidatorOption func(*ruleValidatorConfig)

type ruleValidatorConfig struct {
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	logger    EvaluatorLogger
	err       error
}

// WithRuleEvaluator selects the expression engine. The default is expr.
func WithRuleEvaluator(e Evaluator) RuleValidatorOption {
	return func(cfg *ruleValidatorConfig) {
		cfg.evaluator = e
	}
}

// WithRuleProgramCache shares compiled programs with the default evaluator.
func WithRuleProgramCache(cache ProgramCache) RuleValidatorOption {
	return func(cfg *ruleValidatorConfig) {
		cfg.cache = cache
	}
}

// WithRuleFunctionRegistry exposes registry to the default evaluator.
func WithRuleFunctionRegistry(registry *FunctionRegistry) RuleValidatorOption {
	return func(cfg *ruleValidatorConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithRuleFunction registers fn under name for the default evaluator.
func WithRuleFunction(name string, fn Function) RuleValidatorOption {
	return func(cfg *ruleValidatorConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil && cfg.err == nil {
			cfg.err = err
		}
	}
}

// WithEvaluatorLogger records every rule evaluation. Wrap a store Logger
// with EvaluatorLogs to share it.
func WithEvaluatorLogger(logger EvaluatorLogger) RuleValidatorOption {
	return func(cfg *ruleValidatorConfig) {
		if logger == nil {
			logger = noopEvaluatorLogger{}
		}
		cfg.logger = logger
	}
}

type compiledRule struct {
	Rule
	program CompiledRule
}

// RuleValidator is a Validator backed by expression rules.
type RuleValidator struct {
	evaluator Evaluator
	logger    EvaluatorLogger
	rules     []compiledRule
}

// NewRuleValidator compiles rules up front so malformed expressions fail at
// construction.
func NewRuleValidator(rules []Rule, opts ...RuleValidatorOption) (*RuleValidator, error) {
	cfg := ruleValidatorConfig{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	evaluator := cfg.evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator(ExprWithProgramCache(cfg.cache), ExprWithFunctionRegistry(cfg.functions))
	}

	v := &RuleValidator{evaluator: evaluator, logger: cfg.logger}
	for _, rule := range rules {
		rule.Expr = strings.TrimSpace(rule.Expr)
		if rule.Expr == "" {
			return nil, fmt.Errorf("paramgrid: rule for %s has an empty expression", describeParam(rule.Param))
		}
		switch rule.Level {
		case "":
			rule.Level = RuleError
		case RuleError, RuleWarn:
		default:
			return nil, fmt.Errorf("paramgrid: rule %q has unknown level %q", rule.Expr, rule.Level)
		}
		program, err := evaluator.Compile(rule.Expr)
		if err != nil {
			return nil, wrapEvaluationError(evaluator.Engine(), rule.Expr, rule.Param, err)
		}
		v.rules = append(v.rules, compiledRule{Rule: rule, program: program})
	}
	return v, nil
}

// Validate implements Validator. Deletions are not checked. A rule that does
// not return a bool fails the whole validation.
func (v *RuleValidator) Validate(_ context.Context, vc ValidationContext, records []ValueObject) error {
	if v == nil || len(v.rules) == 0 {
		return nil
	}
	param := vc.Definition.Name
	engine := engineName(v.evaluator)
	ve := &ValidationError{}
	for _, rule := range v.rules {
		if rule.Param != "" && rule.Param != param {
			continue
		}
		for _, vo := range records {
			if vo.IsDeletion() {
				continue
			}
			rc := RuleContext{Param: param, NumberDims: vc.Definition.NumberDims, Record: vo, State: vc.State}
			out, err := runRule(v.logger, engine, rule, rc)
			if err != nil {
				return err
			}
			passed, ok := out.(bool)
			if !ok {
				return wrapEvaluationError(engine, rule.Expr, param, fmt.Errorf("rule returned %T, want bool", out))
			}
			if passed {
				continue
			}
			if rule.Level == RuleWarn {
				ve.addWarning(param, ruleMessage(rule.Rule, vo))
			} else {
				ve.addError(param, ruleMessage(rule.Rule, vo))
			}
		}
	}
	if len(ve.Errors) == 0 && len(ve.Warnings) == 0 {
		return nil
	}
	return ve
}

func ruleMessage(rule Rule, vo ValueObject) string {
	if rule.Message != "" {
		return fmt.Sprintf("%s: %s", rule.Message, vo)
	}
	return fmt.Sprintf("rule %q failed for %s", rule.Expr, vo)
}
