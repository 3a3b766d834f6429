package paramgrid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInconsistentLabels = errors.New("paramgrid: inconsistent labels")
	ErrSparseValueObjects = errors.New("paramgrid: sparse value objects")
	ErrUnsupportedShape   = errors.New("paramgrid: unsupported shape")
	ErrMissingIndexRate   = errors.New("paramgrid: missing index rate")
	ErrShapeMismatch      = errors.New("paramgrid: array shape mismatch")
	ErrAmbiguousSource    = errors.New("paramgrid: ambiguous extension source")
	ErrUnknownLabel       = errors.New("paramgrid: unknown label")
	ErrUnknownLabelValue  = errors.New("paramgrid: unknown label value")
	ErrUnknownParameter   = errors.New("paramgrid: unknown parameter")
	ErrNonNumericPayload  = errors.New("paramgrid: non-numeric payload")
	ErrPayloadType        = errors.New("paramgrid: payload type mismatch")
	ErrInvalidDefaults    = errors.New("paramgrid: invalid defaults document")
)

// InconsistentLabelsError reports a parameter whose records do not share one
// label schema.
type InconsistentLabelsError struct {
	Param   string
	Schemas [][]string
}

func (e *InconsistentLabelsError) Error() string {
	if e == nil {
		return "<nil>"
	}
	rendered := make([]string, 0, len(e.Schemas))
	for _, schema := range e.Schemas {
		rendered = append(rendered, "["+strings.Join(schema, ",")+"]")
	}
	return fmt.Sprintf("paramgrid: inconsistent labels for %s: labels were added or omitted for some value object(s): %s",
		describeParam(e.Param), strings.Join(rendered, " "))
}

func (e *InconsistentLabelsError) Unwrap() error {
	return ErrInconsistentLabels
}

// SparseValueObjectsError lists every label combination missing from a record
// set that must densely cover its grid.
type SparseValueObjectsError struct {
	Param   string
	Labels  []string
	Missing [][]LabelValue
}

func (e *SparseValueObjectsError) Error() string {
	if e == nil {
		return "<nil>"
	}
	lines := make([]string, 0, len(e.Missing))
	for _, combo := range e.Missing {
		lines = append(lines, renderCombination(combo))
	}
	return fmt.Sprintf("paramgrid: value objects for %s do not span the parameter space (%s). Missing combinations:\n\t%s",
		describeParam(e.Param), strings.Join(e.Labels, ", "), strings.Join(lines, "\n\t"))
}

func (e *SparseValueObjectsError) Unwrap() error {
	return ErrSparseValueObjects
}

// UnsupportedShapeError rejects array-valued parameters that also use labels
// under dense projection.
type UnsupportedShapeError struct {
	Param      string
	NumberDims int
	Labels     []string
}

func (e *UnsupportedShapeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("paramgrid: %s is an array parameter with %d dimension(s) and has labels: %s",
		describeParam(e.Param), e.NumberDims, strings.Join(e.Labels, ", "))
}

func (e *UnsupportedShapeError) Unwrap() error {
	return ErrUnsupportedShape
}

// MissingIndexRateError reports a grid position with no index rate.
type MissingIndexRateError struct {
	Param string
	At    LabelValue
}

func (e *MissingIndexRateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("paramgrid: no index rate for %s at %s", describeParam(e.Param), e.At)
}

func (e *MissingIndexRateError) Unwrap() error {
	return ErrMissingIndexRate
}

// ShapeMismatchError reports an array whose shape disagrees with the shape
// derived from the label grid.
type ShapeMismatchError struct {
	Param string
	Want  []int
	Got   []int
}

func (e *ShapeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("paramgrid: array for %s has shape %v, grid requires %v", describeParam(e.Param), e.Got, e.Want)
}

func (e *ShapeMismatchError) Unwrap() error {
	return ErrShapeMismatch
}

// ValidationError aggregates validation messages per parameter. Errors abort
// the operation; warnings are reported alongside.
type ValidationError struct {
	Errors   map[string][]string
	Warnings map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string
	for _, param := range sortedKeys(e.Errors) {
		parts = append(parts, fmt.Sprintf("%s: %s", param, strings.Join(e.Errors[param], "; ")))
	}
	for _, param := range sortedKeys(e.Warnings) {
		parts = append(parts, fmt.Sprintf("%s (warning): %s", param, strings.Join(e.Warnings[param], "; ")))
	}
	return "paramgrid: validation failed: " + strings.Join(parts, " | ")
}

// HasErrors reports whether any error messages were collected.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

func (e *ValidationError) addError(param, msg string) {
	if e.Errors == nil {
		e.Errors = map[string][]string{}
	}
	e.Errors[param] = append(e.Errors[param], msg)
}

func (e *ValidationError) addWarning(param, msg string) {
	if e.Warnings == nil {
		e.Warnings = map[string][]string{}
	}
	e.Warnings[param] = append(e.Warnings[param], msg)
}

func (e *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for param, msgs := range other.Errors {
		for _, msg := range msgs {
			e.addError(param, msg)
		}
	}
	for param, msgs := range other.Warnings {
		for _, msg := range msgs {
			e.addWarning(param, msg)
		}
	}
}

func describeParam(param string) string {
	if param == "" {
		return "<records>"
	}
	return fmt.Sprintf("%q", param)
}

func renderCombination(combo []LabelValue) string {
	parts := make([]string, len(combo))
	for i, v := range combo {
		parts[i] = v.GoString()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
