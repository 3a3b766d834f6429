package paramgrid

import (
	"fmt"
	"reflect"
	"slices"

	"golang.org/x/exp/constraints"
)

// Scalar lists the element types an Array can hold.
type Scalar interface {
	constraints.Integer | constraints.Float | ~bool | ~string
}

// Array is a dense row-major N-dimensional array. A zero-length shape is a
// 0-d array holding one element.
type Array[T Scalar] struct {
	shape []int
	data  []T
}

// NewArray wraps data with shape. The product of shape must equal len(data).
func NewArray[T Scalar](shape []int, data []T) (Array[T], error) {
	size := 1
	for _, n := range shape {
		if n < 0 {
			return Array[T]{}, fmt.Errorf("paramgrid: negative dimension in shape %v", shape)
		}
		size *= n
	}
	if size != len(data) {
		return Array[T]{}, fmt.Errorf("paramgrid: shape %v needs %d elements, got %d", shape, size, len(data))
	}
	return Array[T]{shape: append([]int{}, shape...), data: append([]T(nil), data...)}, nil
}

// ScalarArray returns a 0-d array holding v.
func ScalarArray[T Scalar](v T) Array[T] {
	return Array[T]{shape: []int{}, data: []T{v}}
}

// Shape returns the dimensions of a.
func (a Array[T]) Shape() []int {
	return append([]int{}, a.shape...)
}

// Ndim reports the number of dimensions.
func (a Array[T]) Ndim() int {
	return len(a.shape)
}

// Len reports the number of elements.
func (a Array[T]) Len() int {
	return len(a.data)
}

// Data returns a copy of the elements in row-major order.
func (a Array[T]) Data() []T {
	return append([]T(nil), a.data...)
}

// At returns the element at index. ok is false when index does not address
// an element.
func (a Array[T]) At(index ...int) (T, bool) {
	var zero T
	if len(index) != len(a.shape) {
		return zero, false
	}
	flat := 0
	for i, ix := range index {
		if ix < 0 || ix >= a.shape[i] {
			return zero, false
		}
		flat = flat*a.shape[i] + ix
	}
	return a.data[flat], true
}

// Nested renders a as nested []any slices, the payload form of array-valued
// parameters. A 0-d array renders as its single element.
func (a Array[T]) Nested() any {
	if len(a.shape) == 0 {
		if len(a.data) == 0 {
			return nil
		}
		return a.data[0]
	}
	out, _ := nest(a.shape, a.data)
	return out
}

func nest[T Scalar](shape []int, data []T) (any, []T) {
	if len(shape) == 1 {
		out := make([]any, shape[0])
		for i := range out {
			out[i] = data[i]
		}
		return out, data[shape[0]:]
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i], data = nest(shape[1:], data)
	}
	return out, data
}

// ToArray projects records onto a dense array. Dimensions follow grid order
// restricted to the labels the records use, and each dimension spans the
// full domain of its label in grid.
//
// Records must share one label schema and cover every combination of the
// grid; missing combinations are reported together in a
// *SparseValueObjectsError. Records whose label values fall outside grid are
// ignored. A parameter with numberDims > 0 may not use labels; its single
// payload becomes the array. No labels and numberDims == 0 yields a 0-d
// array. No records yields an empty 1-d array.
func ToArray[T Scalar](records []ValueObject, grid *Grid, numberDims int) (Array[T], error) {
	return toArray[T]("", records, grid, numberDims)
}

func toArray[T Scalar](param string, records []ValueObject, grid *Grid, numberDims int) (Array[T], error) {
	if len(records) == 0 {
		return Array[T]{shape: []int{0}}, nil
	}
	schema, err := requireConsistentLabels(param, records)
	if err != nil {
		return Array[T]{}, err
	}
	if numberDims > 0 {
		if len(schema) > 0 {
			return Array[T]{}, &UnsupportedShapeError{Param: param, NumberDims: numberDims, Labels: schema}
		}
		return arrayFromPayload[T](param, records[len(records)-1].Value)
	}
	if len(schema) == 0 {
		v, err := convertScalar[T](records[len(records)-1].Value)
		if err != nil {
			return Array[T]{}, fmt.Errorf("paramgrid: %s: %w", describeParam(param), err)
		}
		return ScalarArray(v), nil
	}

	for _, name := range schema {
		if !grid.Has(name) {
			return Array[T]{}, fmt.Errorf("%w: %s uses label %q", ErrUnknownLabel, describeParam(param), name)
		}
	}
	dims := grid.Restrict(schema)
	labels := dims.Labels()
	shape := make([]int, len(labels))
	size := 1
	for i, name := range labels {
		shape[i] = len(dims.Values(name))
		size *= shape[i]
	}

	data := make([]T, size)
	filled := make([]bool, size)
	for _, vo := range records {
		flat, ok := flatIndex(dims, labels, shape, vo)
		if !ok {
			continue
		}
		v, err := convertScalar[T](vo.Value)
		if err != nil {
			return Array[T]{}, fmt.Errorf("paramgrid: %s at %s: %w", describeParam(param), vo, err)
		}
		data[flat] = v
		filled[flat] = true
	}

	var missing [][]LabelValue
	for flat, ok := range filled {
		if !ok {
			missing = append(missing, combination(dims, labels, shape, flat))
		}
	}
	if len(missing) > 0 {
		return Array[T]{}, &SparseValueObjectsError{Param: param, Labels: labels, Missing: missing}
	}
	return Array[T]{shape: shape, data: data}, nil
}

func flatIndex(dims *Grid, labels []string, shape []int, vo ValueObject) (int, bool) {
	flat := 0
	for i, name := range labels {
		ix, ok := dims.Index(name, vo.Labels[name])
		if !ok {
			return 0, false
		}
		flat = flat*shape[i] + ix
	}
	return flat, true
}

func combination(dims *Grid, labels []string, shape []int, flat int) []LabelValue {
	combo := make([]LabelValue, len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		combo[i] = dims.Values(labels[i])[flat%shape[i]]
		flat /= shape[i]
	}
	return combo
}

// FromArray is the inverse of ToArray: it walks the cartesian product of
// every label of grid in order and pairs each combination with the matching
// element. A grid without labels turns the whole array into one record,
// nested when the array has dimensions.
func FromArray[T Scalar](arr Array[T], grid *Grid) ([]ValueObject, error) {
	return fromArray("", arr, grid)
}

func fromArray[T Scalar](param string, arr Array[T], grid *Grid) ([]ValueObject, error) {
	labels := grid.Labels()
	if len(labels) == 0 {
		return []ValueObject{{Labels: map[string]LabelValue{}, Value: arr.Nested()}}, nil
	}
	want := make([]int, len(labels))
	for i, name := range labels {
		want[i] = len(grid.Values(name))
	}
	if !slices.Equal(want, arr.shape) {
		return nil, &ShapeMismatchError{Param: param, Want: want, Got: arr.Shape()}
	}
	out := make([]ValueObject, 0, len(arr.data))
	for flat, v := range arr.data {
		combo := combination(grid, labels, want, flat)
		vo := ValueObject{Labels: make(map[string]LabelValue, len(labels)), Value: v}
		for i, name := range labels {
			vo.Labels[name] = combo[i]
		}
		out = append(out, vo)
	}
	return out, nil
}

// arrayFromPayload flattens a nested slice payload into an Array.
func arrayFromPayload[T Scalar](param string, payload any) (Array[T], error) {
	rv := reflect.ValueOf(payload)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		v, err := convertScalar[T](payload)
		if err != nil {
			return Array[T]{}, fmt.Errorf("paramgrid: %s: %w", describeParam(param), err)
		}
		return ScalarArray(v), nil
	}
	var shape []int
	for cur := rv; cur.Kind() == reflect.Slice || cur.Kind() == reflect.Array; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = reflect.ValueOf(cur.Index(0).Interface())
	}
	var data []T
	if err := flattenPayload(rv, shape, &data); err != nil {
		return Array[T]{}, fmt.Errorf("paramgrid: %s: %w", describeParam(param), err)
	}
	return Array[T]{shape: shape, data: data}, nil
}

func flattenPayload[T Scalar](rv reflect.Value, shape []int, out *[]T) error {
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if len(shape) == 0 {
		v, err := convertScalar[T](rv.Interface())
		if err != nil {
			return err
		}
		*out = append(*out, v)
		return nil
	}
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != shape[0] {
		return fmt.Errorf("%w: ragged payload", ErrPayloadType)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := flattenPayload(rv.Index(i), shape[1:], out); err != nil {
			return err
		}
	}
	return nil
}

// convertScalar converts a payload to T. Numeric payloads convert between
// numeric types; bool and string payloads only convert to their own family.
func convertScalar[T Scalar](payload any) (T, error) {
	var zero T
	if typed, ok := payload.(T); ok {
		return typed, nil
	}
	rv := reflect.ValueOf(payload)
	if !rv.IsValid() {
		return zero, fmt.Errorf("%w: nil payload", ErrPayloadType)
	}
	target := reflect.TypeOf(zero)
	if kindFamily(rv.Kind()) != kindFamily(target.Kind()) || kindFamily(rv.Kind()) == "" {
		return zero, fmt.Errorf("%w: cannot use %T as %s", ErrPayloadType, payload, target)
	}
	return rv.Convert(target).Interface().(T), nil
}

func kindFamily(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "bool"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return ""
	}
}

// ParameterArray projects the records of name inside the current state onto
// an array. Dimensions span the state-narrowed grid of the labels the
// parameter uses.
func ParameterArray[T Scalar](ps *Parameters, name string) (Array[T], error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return Array[T]{}, err
	}
	return toArray[T](name, ps.stateValues(p), ps.labelGrid.Restrict(p.Schema()), p.NumberDims)
}

// ParameterFromArray converts arr into records for name over the same grid
// ParameterArray uses. The records are returned, not merged; pass them to
// Adjust to apply them.
func ParameterFromArray[T Scalar](ps *Parameters, name string, arr Array[T]) ([]ValueObject, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	return fromArray(name, arr, ps.labelGrid.Restrict(p.Schema()))
}
