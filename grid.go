package paramgrid

import (
	"fmt"
	"strings"
)

// Label declares a named dimension and its ordered domain.
type Label struct {
	Name   string
	Values []LabelValue
}

// NewLabel converts raw Go values into a Label.
func NewLabel(name string, values ...any) (Label, error) {
	out := Label{Name: name, Values: make([]LabelValue, 0, len(values))}
	for _, raw := range values {
		lv, err := ValueOf(raw)
		if err != nil {
			return Label{}, fmt.Errorf("paramgrid: label %q: %w", name, err)
		}
		out.Values = append(out.Values, lv)
	}
	return out, nil
}

// Grid is the ordered domain of legal values for each label. Label order is
// the declaration order; value order within a label drives every greater-than
// comparison and every array projection.
type Grid struct {
	names  []string
	values map[string][]LabelValue
	pos    map[string]map[LabelValue]int
}

// NewGrid validates labels and builds a Grid.
func NewGrid(labels ...Label) (*Grid, error) {
	g := &Grid{
		values: make(map[string][]LabelValue, len(labels)),
		pos:    make(map[string]map[LabelValue]int, len(labels)),
	}
	for _, label := range labels {
		name := strings.TrimSpace(label.Name)
		if name == "" {
			return nil, fmt.Errorf("paramgrid: label name must not be empty")
		}
		if name == ValueField {
			return nil, fmt.Errorf("paramgrid: label name %q is reserved", ValueField)
		}
		if _, exists := g.values[name]; exists {
			return nil, fmt.Errorf("paramgrid: label %q declared twice", name)
		}
		if err := g.set(name, label.Values); err != nil {
			return nil, err
		}
		g.names = append(g.names, name)
	}
	return g, nil
}

// MustGrid is NewGrid that panics on invalid input.
func MustGrid(labels ...Label) *Grid {
	g, err := NewGrid(labels...)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Grid) set(name string, values []LabelValue) error {
	positions := make(map[LabelValue]int, len(values))
	for i, v := range values {
		if v.IsZero() {
			return fmt.Errorf("paramgrid: label %q has an invalid value at position %d", name, i)
		}
		if _, dup := positions[v]; dup {
			return fmt.Errorf("paramgrid: label %q lists %s twice", name, v)
		}
		positions[v] = i
	}
	g.values[name] = append([]LabelValue(nil), values...)
	g.pos[name] = positions
	return nil
}

// Labels returns the label names in declaration order.
func (g *Grid) Labels() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.names...)
}

// Len reports the number of labels.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

// Has reports whether name is a declared label.
func (g *Grid) Has(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.values[name]
	return ok
}

// Values returns the ordered domain of name.
func (g *Grid) Values(name string) []LabelValue {
	if g == nil {
		return nil
	}
	return append([]LabelValue(nil), g.values[name]...)
}

// Index returns the position of v within the domain of name.
func (g *Grid) Index(name string, v LabelValue) (int, bool) {
	if g == nil {
		return 0, false
	}
	ix, ok := g.pos[name][v]
	return ix, ok
}

// Contains reports whether v is a legal value of name.
func (g *Grid) Contains(name string, v LabelValue) bool {
	_, ok := g.Index(name, v)
	return ok
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	clone := &Grid{
		names:  append([]string(nil), g.names...),
		values: make(map[string][]LabelValue, len(g.values)),
		pos:    make(map[string]map[LabelValue]int, len(g.pos)),
	}
	for name, values := range g.values {
		clone.values[name] = append([]LabelValue(nil), values...)
		positions := make(map[LabelValue]int, len(values))
		for v, ix := range g.pos[name] {
			positions[v] = ix
		}
		clone.pos[name] = positions
	}
	return clone
}

// WithValues returns a copy of g where the domain of name is replaced by
// values. It is how per-instance state narrows or reorders the grid.
func (g *Grid) WithValues(name string, values []LabelValue) (*Grid, error) {
	if !g.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	clone := g.Clone()
	if err := clone.set(name, values); err != nil {
		return nil, err
	}
	return clone, nil
}

// Restrict returns a grid holding only the labels in names that g declares,
// in g's order.
func (g *Grid) Restrict(names []string) *Grid {
	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}
	out := &Grid{
		values: map[string][]LabelValue{},
		pos:    map[string]map[LabelValue]int{},
	}
	for _, name := range g.Labels() {
		if _, ok := keep[name]; !ok {
			continue
		}
		out.names = append(out.names, name)
		out.values[name] = g.Values(name)
		positions := make(map[LabelValue]int, len(out.values[name]))
		for ix, v := range out.values[name] {
			positions[v] = ix
		}
		out.pos[name] = positions
	}
	return out
}
