package paramgrid

import (
	"fmt"
	"math"
	"reflect"
)

// IndexSaturation caps indexed values. Growth that would reach it is clamped
// to it instead of overflowing.
const IndexSaturation = 9e99

// IndexRateFunc returns the index rate for param at one position of the
// extended label.
type IndexRateFunc func(param string, at LabelValue) (float64, error)

// IndexRates is a rate table keyed by the extended label's value, shared by
// every indexed parameter.
type IndexRates map[LabelValue]float64

// Rate implements IndexRateFunc.
func (r IndexRates) Rate(param string, at LabelValue) (float64, error) {
	rate, ok := r[at]
	if !ok {
		return 0, &MissingIndexRateError{Param: param, At: at}
	}
	return rate, nil
}

// Transform adjusts a synthesized record. target is a copy of source with
// the extended label moved to its new position.
type Transform func(target, source ValueObject) (ValueObject, error)

// IndexRateTransform scales payloads as records move along label.
//
// Moving forward multiplies once by 1+rate(source position); extension
// proceeds one position at a time so growth compounds across steps. Moving
// backward divides by 1+rate(p) for every position p from the one before the
// source down to the target. Values are rounded to two decimals after every
// step and clamped at IndexSaturation.
func IndexRateTransform(param, label string, grid []LabelValue, rates IndexRateFunc) Transform {
	positions := gridPositions(grid)
	return func(target, source ValueObject) (ValueObject, error) {
		if rates == nil {
			return target, nil
		}
		knownIx, ok := positions[source.Labels[label]]
		if !ok {
			return ValueObject{}, fmt.Errorf("%w: %s=%s", ErrUnknownLabelValue, label, source.Labels[label])
		}
		targetIx, ok := positions[target.Labels[label]]
		if !ok {
			return ValueObject{}, fmt.Errorf("%w: %s=%s", ErrUnknownLabelValue, label, target.Labels[label])
		}

		value := target.Value
		if targetIx > knownIx {
			rate, err := rates(param, grid[knownIx])
			if err != nil {
				return ValueObject{}, err
			}
			value, err = scalePayload(value, 1+rate)
			if err != nil {
				return ValueObject{}, fmt.Errorf("paramgrid: index %q: %w", param, err)
			}
		} else {
			for ix := knownIx - 1; ix >= targetIx; ix-- {
				rate, err := rates(param, grid[ix])
				if err != nil {
					return ValueObject{}, err
				}
				value, err = scalePayload(value, 1/(1+rate))
				if err != nil {
					return ValueObject{}, fmt.Errorf("paramgrid: index %q: %w", param, err)
				}
			}
		}
		target.Value = value
		return target, nil
	}
}

func gridPositions(grid []LabelValue) map[LabelValue]int {
	positions := make(map[LabelValue]int, len(grid))
	for ix, v := range grid {
		positions[v] = ix
	}
	return positions
}

// scalePayload multiplies a numeric scalar, or every element of a nested
// numeric slice, by factor.
func scalePayload(payload any, factor float64) (any, error) {
	switch typed := payload.(type) {
	case float64:
		return roundIndexed(typed * factor), nil
	case []float64:
		out := make([]float64, len(typed))
		for i, v := range typed {
			out[i] = roundIndexed(v * factor)
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			scaled, err := scalePayload(v, factor)
			if err != nil {
				return nil, err
			}
			out[i] = scaled
		}
		return out, nil
	}

	rv := reflect.ValueOf(payload)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return roundIndexed(float64(rv.Int()) * factor), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return roundIndexed(float64(rv.Uint()) * factor), nil
	case reflect.Float32:
		return roundIndexed(rv.Float() * factor), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			scaled, err := scalePayload(rv.Index(i).Interface(), factor)
			if err != nil {
				return nil, err
			}
			out[i] = scaled
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNonNumericPayload, payload)
}

func roundIndexed(v float64) float64 {
	if v >= IndexSaturation {
		return IndexSaturation
	}
	return math.RoundToEven(v*100) / 100
}
