package paramgrid

import (
	"errors"
	"fmt"
)

// EvaluationError is a rule that failed to compile or evaluate, as opposed
// to a rule that evaluated to false.
type EvaluationError struct {
	Engine string
	Expr   string
	Param  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "expr=<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("expr=%q", e.Expr)
	}
	return fmt.Sprintf("paramgrid: %s evaluator %s param=%s: %v", e.Engine, expr, e.Param, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapEvaluationError attaches rule metadata to err. An EvaluationError
// already in the chain only has its empty fields filled.
func wrapEvaluationError(engine, expr, param string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Param: param, Err: err}
	}
	for _, f := range []struct {
		field *string
		value string
	}{{&evalErr.Engine, engine}, {&evalErr.Expr, expr}, {&evalErr.Param, param}} {
		if *f.field == "" {
			*f.field = f.value
		}
	}
	return evalErr
}
