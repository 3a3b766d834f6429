package paramgrid

import "fmt"

// SelectOption configures a selection.
type SelectOption func(*selectConfig)

type selectConfig struct {
	tree *Tree
}

// WithTree lets a selection descend a pre-built index instead of scanning.
// The tree must index the same records passed to the selection.
func WithTree(tree *Tree) SelectOption {
	return func(cfg *selectConfig) {
		cfg.tree = tree
	}
}

func applySelectOptions(opts []SelectOption) selectConfig {
	cfg := selectConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// comparator decides whether a record's value for label satisfies the
// filter values.
type comparator func(label string, have LabelValue, want []LabelValue) bool

func eqComparator(_ string, have LabelValue, want []LabelValue) bool {
	for _, w := range want {
		if have == w {
			return true
		}
	}
	return false
}

// gtComparator matches values ranked after every wanted value in grid.
func gtComparator(grid *Grid) comparator {
	return func(label string, have LabelValue, want []LabelValue) bool {
		hix, ok := grid.Index(label, have)
		if !ok {
			return false
		}
		for _, w := range want {
			wix, _ := grid.Index(label, w)
			if hix <= wix {
				return false
			}
		}
		return true
	}
}

// SelectEq returns the records agreeing with every label of filter.
//
// With exact false, labels a record carries beyond the filter are ignored and
// a record that omits a filtered label matches it as a wildcard. With exact
// true, a record qualifies only when its label set equals the filter's keys.
// An empty filter returns records unchanged.
func SelectEq(records []ValueObject, exact bool, filter Filter, opts ...SelectOption) []ValueObject {
	if len(filter) == 0 {
		return records
	}
	cfg := applySelectOptions(opts)
	if cfg.tree != nil {
		return cfg.tree.selectWith(filter, exact, nil)
	}
	return scan(records, exact, filter, eqComparator)
}

// SelectGt returns the records whose value for each filtered label ranks
// strictly after every filter value in grid order. exact behaves as in
// SelectEq.
func SelectGt(records []ValueObject, exact bool, filter Filter, grid *Grid, opts ...SelectOption) ([]ValueObject, error) {
	if len(filter) == 0 {
		return records, nil
	}
	if err := checkFilterAgainstGrid(filter, grid); err != nil {
		return nil, err
	}
	cfg := applySelectOptions(opts)
	if cfg.tree != nil {
		return cfg.tree.selectWith(filter, exact, grid), nil
	}
	return scan(records, exact, filter, gtComparator(grid)), nil
}

func scan(records []ValueObject, exact bool, filter Filter, cmp comparator) []ValueObject {
	out := make([]ValueObject, 0, len(records))
	for _, vo := range records {
		if matches(vo, exact, filter, cmp) {
			out = append(out, vo)
		}
	}
	return out
}

func matches(vo ValueObject, exact bool, filter Filter, cmp comparator) bool {
	if exact && len(vo.Labels) != len(filter) {
		return false
	}
	for label, want := range filter {
		have, ok := vo.Labels[label]
		if !ok {
			if exact {
				return false
			}
			continue
		}
		if !cmp(label, have, want) {
			return false
		}
	}
	return true
}

func checkFilterAgainstGrid(filter Filter, grid *Grid) error {
	for label, values := range filter {
		if !grid.Has(label) {
			return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
		}
		for _, v := range values {
			if !grid.Contains(label, v) {
				return fmt.Errorf("%w: %s=%s", ErrUnknownLabelValue, label, v)
			}
		}
	}
	return nil
}
