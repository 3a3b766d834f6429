package paramgrid

import (
	"fmt"
	"slices"
)

// Derivation records how one synthesized record was produced.
type Derivation struct {
	Param  string
	Label  string
	Source ValueObject
	Target ValueObject
}

// Extend fills the positions of extendGrid missing from records along label.
//
// Records are grouped by every label except label; within a group each
// missing position is copied from the closest known position before it (the
// earliest known record when the first grid position is missing) and passed
// through transform. Only the synthesized records are returned; merging them
// is left to the caller. Records whose value for label falls outside
// extendGrid are not used as sources.
func Extend(records []ValueObject, label string, extendGrid []LabelValue, transform Transform) ([]ValueObject, error) {
	return extendRecords("", records, label, extendGrid, transform, nil)
}

// ExtendParameters runs Extend for every parameter and returns the records
// to merge, keyed by parameter name. Indexed parameters are scaled with rates
// when rates is set. observe, when set, receives every derivation. No
// parameter is extended if any fails.
func ExtendParameters(params []*Parameter, label string, extendGrid []LabelValue, rates IndexRateFunc, observe func(Derivation)) (map[string][]ValueObject, error) {
	out := make(map[string][]ValueObject, len(params))
	for _, param := range params {
		if param == nil {
			continue
		}
		var transform Transform
		if rates != nil && param.Indexed {
			transform = IndexRateTransform(param.Name, label, extendGrid, rates)
		}
		extended, err := extendRecords(param.Name, param.values, label, extendGrid, transform, observe)
		if err != nil {
			return nil, err
		}
		if len(extended) > 0 {
			out[param.Name] = extended
		}
	}
	return out, nil
}

func extendRecords(param string, records []ValueObject, label string, extendGrid []LabelValue, transform Transform, observe func(Derivation)) ([]ValueObject, error) {
	if len(records) == 0 || len(extendGrid) == 0 {
		return nil, nil
	}
	schema, err := requireConsistentLabels(param, records)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(schema, label) {
		return nil, nil
	}

	positions := gridPositions(extendGrid)
	groups, order, err := groupByPosition(param, records, label, positions)
	if err != nil {
		return nil, err
	}

	var out []ValueObject
	seen := map[string]struct{}{}
	for _, key := range order {
		defined := groups[key]
		if len(defined) == 0 {
			continue
		}
		first := len(extendGrid)
		for ix := range defined {
			if ix < first {
				first = ix
			}
		}

		synthesized := map[int]ValueObject{}
		for ix, missing := range extendGrid {
			if _, ok := defined[ix]; ok {
				continue
			}
			var source ValueObject
			if ix == 0 {
				source = defined[first]
			} else if prev, ok := synthesized[ix-1]; ok {
				source = prev
			} else if prev, ok := defined[ix-1]; ok {
				source = prev
			} else {
				continue
			}

			target := source.With(label, missing)
			if transform != nil {
				target, err = transform(target, source)
				if err != nil {
					return nil, err
				}
			}
			sig := target.Signature()
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			synthesized[ix] = target
			out = append(out, target)
			if observe != nil {
				observe(Derivation{Param: param, Label: label, Source: source, Target: target})
			}
		}
	}
	return out, nil
}

// groupByPosition buckets records by their signature without label and
// positions each bucket's records along the extended grid. Group order is
// first-seen order.
func groupByPosition(param string, records []ValueObject, label string, positions map[LabelValue]int) (map[string]map[int]ValueObject, []string, error) {
	groups := map[string]map[int]ValueObject{}
	var order []string
	for _, vo := range records {
		key := vo.SignatureWithout(label)
		group, ok := groups[key]
		if !ok {
			group = map[int]ValueObject{}
			groups[key] = group
			order = append(order, key)
		}
		ix, ok := positions[vo.Labels[label]]
		if !ok {
			continue
		}
		if existing, dup := group[ix]; dup {
			return nil, nil, fmt.Errorf("%w: %s has %s and %s at %s=%s",
				ErrAmbiguousSource, describeParam(param), existing, vo, label, vo.Labels[label])
		}
		group[ix] = vo
	}
	return groups, order, nil
}
