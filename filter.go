package paramgrid

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
)

// Filter selects records by label. Values listed for one label are OR-ed,
// distinct labels are AND-ed.
type Filter map[string][]LabelValue

// NewFilter converts raw label values into a Filter. Each entry may be a
// scalar or a slice of scalars.
func NewFilter(labels map[string]any) (Filter, error) {
	f := make(Filter, len(labels))
	for name, raw := range labels {
		values, err := filterValues(raw)
		if err != nil {
			return nil, fmt.Errorf("paramgrid: filter %q: %w", name, err)
		}
		f[name] = values
	}
	return f, nil
}

// MustFilter is NewFilter that panics on invalid input.
func MustFilter(labels map[string]any) Filter {
	f, err := NewFilter(labels)
	if err != nil {
		panic(err)
	}
	return f
}

func filterValues(raw any) ([]LabelValue, error) {
	switch typed := raw.(type) {
	case []LabelValue:
		return append([]LabelValue(nil), typed...), nil
	case LabelValue:
		return []LabelValue{typed}, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]LabelValue, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			lv, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, lv)
		}
		return out, nil
	}
	lv, err := ValueOf(raw)
	if err != nil {
		return nil, err
	}
	return []LabelValue{lv}, nil
}

// With returns a copy of f with name bound to values.
func (f Filter) With(name string, values ...LabelValue) Filter {
	out := f.Clone()
	out[name] = append([]LabelValue(nil), values...)
	return out
}

// Clone returns a deep copy of f.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for name, values := range f {
		out[name] = append([]LabelValue(nil), values...)
	}
	return out
}

// Keys returns the filtered label names, sorted.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// FilterOf builds an equality filter from the labels of vo, dropping the
// labels in drop.
func FilterOf(vo ValueObject, drop ...string) Filter {
	f := make(Filter, len(vo.Labels))
	for name, v := range vo.Labels {
		if !slices.Contains(drop, name) {
			f[name] = []LabelValue{v}
		}
	}
	return f
}
