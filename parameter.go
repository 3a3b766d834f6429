package paramgrid

import (
	"fmt"
	"strings"
)

// Definition declares one parameter and its default records.
type Definition struct {
	Name        string
	Title       string
	Description string
	// NumberDims is the rank of the payload. Zero means scalar values.
	NumberDims int
	// Indexed parameters are scaled by the index rates when extended.
	Indexed bool
	Values  []ValueObject
}

// Parameter owns the authoritative record list of one parameter together
// with a lazily built index over it. A Parameter is not safe for concurrent
// use; Parameters serializes access.
type Parameter struct {
	Name        string
	Title       string
	Description string
	NumberDims  int
	Indexed     bool

	values []ValueObject
	tree   *Tree
	grid   *Grid
}

// NewParameter validates def and builds the parameter entry. Records must
// share one label schema.
func NewParameter(def Definition) (*Parameter, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("paramgrid: parameter name must not be empty")
	}
	if def.NumberDims < 0 {
		return nil, fmt.Errorf("paramgrid: parameter %q has negative number_dims %d", name, def.NumberDims)
	}
	if _, err := requireConsistentLabels(name, def.Values); err != nil {
		return nil, err
	}
	return &Parameter{
		Name:        name,
		Title:       def.Title,
		Description: def.Description,
		NumberDims:  def.NumberDims,
		Indexed:     def.Indexed,
		values:      cloneRecords(def.Values),
	}, nil
}

// Definition returns the declaration of p with its current records.
func (p *Parameter) Definition() Definition {
	return Definition{
		Name:        p.Name,
		Title:       p.Title,
		Description: p.Description,
		NumberDims:  p.NumberDims,
		Indexed:     p.Indexed,
		Values:      p.Values(),
	}
}

// Values returns a copy of the record list in merge order.
func (p *Parameter) Values() []ValueObject {
	return cloneRecords(p.values)
}

// Len reports the number of records.
func (p *Parameter) Len() int {
	return len(p.values)
}

// Schema returns the label names shared by the records.
func (p *Parameter) Schema() []string {
	if len(p.values) == 0 {
		return nil
	}
	return p.values[0].Schema()
}

// Index returns the index over the records, building it with grid on first
// use or when grid changed since the last build.
func (p *Parameter) Index(grid *Grid) *Tree {
	if p.tree == nil || p.grid != grid {
		p.tree = BuildTree(p.values, grid)
		p.grid = grid
	}
	return p.tree
}

// Invalidate drops the cached index.
func (p *Parameter) Invalidate() {
	p.tree = nil
	p.grid = nil
}

// Select runs an equality query over the records through the index.
func (p *Parameter) Select(grid *Grid, filter Filter, exact bool) []ValueObject {
	if len(filter) == 0 {
		return p.Values()
	}
	return p.Index(grid).Select(filter, exact)
}

// SelectGt runs a greater-than query over the records through the index.
func (p *Parameter) SelectGt(grid *Grid, filter Filter, exact bool) ([]ValueObject, error) {
	if len(filter) == 0 {
		return p.Values(), nil
	}
	return p.Index(grid).SelectGt(filter, exact, grid)
}

// Update merges records into the parameter and returns the merged list. When
// the merge would leave records with different label schemas the parameter is
// left untouched and an *InconsistentLabelsError is returned.
func (p *Parameter) Update(grid *Grid, records []ValueObject) ([]ValueObject, error) {
	if len(records) == 0 {
		return p.Values(), nil
	}
	previous := p.values
	merged := p.Index(grid).Update(records)
	if _, err := requireConsistentLabels(p.Name, merged); err != nil {
		p.values = previous
		p.Invalidate()
		return nil, err
	}
	p.values = merged
	return cloneRecords(merged), nil
}

// Replace swaps the record list wholesale and drops the index.
func (p *Parameter) Replace(records []ValueObject) error {
	if _, err := requireConsistentLabels(p.Name, records); err != nil {
		return err
	}
	p.values = cloneRecords(records)
	p.Invalidate()
	return nil
}

func (p *Parameter) clone() *Parameter {
	out := *p
	out.values = cloneRecords(p.values)
	out.tree = nil
	out.grid = nil
	return &out
}
