package paramgrid

import "time"

// Names bound for every record besides its labels. A label sharing one of
// these names is still reachable through labels.
const (
	bindValue      = "value"
	bindLabels     = "labels"
	bindParam      = "param"
	bindNumberDims = "number_dims"
	bindState      = "state"
	bindCall       = "call"
)

var reservedBindings = []string{bindValue, bindLabels, bindParam, bindNumberDims, bindState, bindCall}

// Evaluator compiles rule expressions in one expression language.
type Evaluator interface {
	// Engine names the language in errors and log events.
	Engine() string
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a program evaluated once per proposed record.
type CompiledRule interface {
	Evaluate(rc RuleContext) (any, error)
}

// RuleContext is a record under validation together with the parameter it
// is proposed for.
type RuleContext struct {
	Param      string
	NumberDims int
	Record     ValueObject
	// State is the active label selection of the parameter set.
	State map[string][]LabelValue
}

// Bindings returns the variables an expression sees for the record.
func (rc RuleContext) Bindings() map[string]any {
	labels := make(map[string]any, len(rc.Record.Labels))
	vars := make(map[string]any, len(rc.Record.Labels)+len(reservedBindings))
	for name, lv := range rc.Record.Labels {
		labels[name] = lv.Interface()
		vars[name] = lv.Interface()
	}
	state := make(map[string]any, len(rc.State))
	for name, values := range rc.State {
		selected := make([]any, len(values))
		for i, lv := range values {
			selected[i] = lv.Interface()
		}
		state[name] = selected
	}
	vars[bindLabels] = labels
	vars[bindValue] = rc.Record.Value
	vars[bindParam] = rc.Param
	vars[bindNumberDims] = rc.NumberDims
	vars[bindState] = state
	return vars
}

func engineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	return e.Engine()
}

// runRule evaluates one record and reports the attempt to logger.
func runRule(logger EvaluatorLogger, engine string, rule compiledRule, rc RuleContext) (any, error) {
	start := time.Now()
	out, err := rule.program.Evaluate(rc)
	err = wrapEvaluationError(engine, rule.Expr, rc.Param, err)
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     rule.Expr,
		Param:    rc.Param,
		Record:   rc.Record.String(),
		Duration: time.Since(start),
		Err:      err,
	})
	return out, err
}
