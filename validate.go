package paramgrid

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ValidationContext is the view of a parameter set handed to a Validator.
type ValidationContext struct {
	// Grid is the full declared label domain.
	Grid *Grid
	// State is the active label selection, keyed by label.
	State map[string][]LabelValue
	// Current holds the records of the parameter before the adjustment.
	Current []ValueObject
	// Definition describes the parameter being validated.
	Definition Definition
}

// Validator checks records proposed for one parameter. Implementations
// report problems through *ValidationError; any other error aborts the
// operation as-is.
type Validator interface {
	Validate(ctx context.Context, vc ValidationContext, records []ValueObject) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, vc ValidationContext, records []ValueObject) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, vc ValidationContext, records []ValueObject) error {
	if f == nil {
		return nil
	}
	return f(ctx, vc, records)
}

// checkRecords verifies that records only use labels and values declared in
// grid and that they agree with the label schema of current. Messages are
// collected under param.
func checkRecords(ve *ValidationError, param string, grid *Grid, current, records []ValueObject) {
	var schema []string
	if len(current) > 0 {
		schema = current[0].Schema()
	} else if len(records) > 0 {
		schema = records[0].Schema()
	}
	for _, vo := range records {
		for _, name := range vo.Schema() {
			v := vo.Labels[name]
			if !grid.Has(name) {
				ve.addError(param, fmt.Sprintf("unknown label %q", name))
				continue
			}
			if !grid.Contains(name, v) {
				ve.addError(param, fmt.Sprintf("value %s is not allowed for label %q", v.GoString(), name))
			}
		}
		if !slices.Equal(vo.Schema(), schema) {
			ve.addError(param, fmt.Sprintf("labels %v do not match the parameter labels %v", vo.Schema(), schema))
		}
	}
}

// runValidator calls v and folds *ValidationError results into ve.
func runValidator(ctx context.Context, ve *ValidationError, v Validator, vc ValidationContext, records []ValueObject) error {
	if v == nil {
		return nil
	}
	err := v.Validate(ctx, vc, records)
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		ve.merge(verr)
		return nil
	}
	return err
}
