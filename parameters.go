package paramgrid

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-paramgrid/pkg/activity"
)

// Parameters is a set of labeled parameters sharing one label grid.
//
// It keeps the declared grid, a per-instance state that narrows the grid,
// and one Parameter entry per declared parameter. Public methods are
// serialized by a single mutex.
type Parameters struct {
	mu sync.Mutex

	grid      *Grid
	labelGrid *Grid
	state     map[string][]LabelValue
	params    map[string]*Parameter
	order     []string

	cfg     config
	logger  Logger
	emitter *activity.Emitter
}

// New builds a parameter set from defs. Every record must use labels and
// values declared in grid. When a label to extend is configured, missing
// records are synthesized before New returns.
func New(grid *Grid, defs []Definition, opts ...Option) (*Parameters, error) {
	if grid == nil {
		grid = MustGrid()
	}
	cfg := applyOptions(opts)
	ps := &Parameters{
		grid:      grid.Clone(),
		labelGrid: grid.Clone(),
		state:     map[string][]LabelValue{},
		params:    make(map[string]*Parameter, len(defs)),
		cfg:       cfg,
		logger:    cfg.loggerOrNoop(),
		emitter:   cfg.emitter(),
	}

	ve := &ValidationError{}
	for _, def := range defs {
		p, err := NewParameter(def)
		if err != nil {
			return nil, err
		}
		if _, dup := ps.params[p.Name]; dup {
			return nil, fmt.Errorf("paramgrid: parameter %q declared twice", p.Name)
		}
		checkRecords(ve, p.Name, ps.grid, nil, p.values)
		ps.params[p.Name] = p
		ps.order = append(ps.order, p.Name)
	}
	if ve.HasErrors() {
		return nil, ve
	}

	if cfg.labelToExtend != "" && !ps.grid.Has(cfg.labelToExtend) {
		return nil, fmt.Errorf("%w: label to extend %q", ErrUnknownLabel, cfg.labelToExtend)
	}
	if len(cfg.initialState) > 0 {
		if err := ps.setStateLocked(cfg.initialState); err != nil {
			return nil, err
		}
	}
	if cfg.labelToExtend != "" {
		if _, err := ps.extendLocked(context.Background(), extendConfig{}); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// Grid returns the declared label grid.
func (ps *Parameters) Grid() *Grid {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.grid.Clone()
}

// LabelGrid returns the grid narrowed by the current state.
func (ps *Parameters) LabelGrid() *Grid {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.labelGrid.Clone()
}

// LabelToExtend returns the configured extension label, if any.
func (ps *Parameters) LabelToExtend() string {
	return ps.cfg.labelToExtend
}

// ActivityHooks returns a copy of the configured activity hooks.
func (ps *Parameters) ActivityHooks() activity.Hooks {
	if ps == nil {
		return nil
	}
	return ps.cfg.activityHooks.Compact()
}

// Names returns the parameter names in declaration order.
func (ps *Parameters) Names() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.order...)
}

// Definition returns the declaration and current records of name.
func (ps *Parameters) Definition(name string) (Definition, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return Definition{}, err
	}
	return p.Definition(), nil
}

func (ps *Parameters) lookup(name string) (*Parameter, error) {
	p, ok := ps.params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return p, nil
}

// Select returns the records of name matching filter.
func (ps *Parameters) Select(name string, filter Filter, exact bool) ([]ValueObject, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	return cloneRecords(p.Select(ps.grid, filter, exact)), nil
}

// SelectGt returns the records of name ranked after filter in the declared
// grid.
func (ps *Parameters) SelectGt(name string, filter Filter, exact bool) ([]ValueObject, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := p.SelectGt(ps.grid, filter, exact)
	if err != nil {
		return nil, err
	}
	return cloneRecords(out), nil
}

// Values returns the records of name that fall inside the current state.
func (ps *Parameters) Values(name string) ([]ValueObject, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	return cloneRecords(ps.stateValues(p)), nil
}

// AllValues returns every record of name regardless of state.
func (ps *Parameters) AllValues(name string) ([]ValueObject, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	return p.Values(), nil
}

func (ps *Parameters) stateValues(p *Parameter) []ValueObject {
	if len(ps.state) == 0 {
		return p.values
	}
	return p.Select(ps.grid, ps.stateFilter(), false)
}

func (ps *Parameters) stateFilter() Filter {
	f := make(Filter, len(ps.state))
	for name, values := range ps.state {
		f[name] = append([]LabelValue(nil), values...)
	}
	return f
}

// Specification returns the records of every parameter, optionally limited
// to the current state, further narrowed by filter and sorted in grid order.
func (ps *Parameters) Specification(useState bool, filter Filter) map[string][]ValueObject {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make(map[string][]ValueObject, len(ps.order))
	for _, name := range ps.order {
		p := ps.params[name]
		records := p.values
		if useState {
			records = ps.stateValues(p)
		}
		records = SelectEq(records, false, filter)
		out[name] = SortValues(cloneRecords(records), ps.grid)
	}
	return out
}

// SortValues orders records by grid: the first grid label takes precedence,
// records omitting a label sort before records carrying it, and labels the
// grid does not declare break remaining ties by name. The sort is stable and
// records is sorted in place.
func SortValues(records []ValueObject, grid *Grid) []ValueObject {
	labels := grid.Labels()
	sort.SliceStable(records, func(i, j int) bool {
		return compareRecords(records[i], records[j], grid, labels) < 0
	})
	return records
}

func compareRecords(a, b ValueObject, grid *Grid, labels []string) int {
	for _, name := range labels {
		if c := compareLabel(a, b, name, func(v LabelValue) (int, bool) { return grid.Index(name, v) }); c != 0 {
			return c
		}
	}
	extra := map[string]struct{}{}
	for name := range a.Labels {
		if !grid.Has(name) {
			extra[name] = struct{}{}
		}
	}
	for name := range b.Labels {
		if !grid.Has(name) {
			extra[name] = struct{}{}
		}
	}
	for _, name := range sortedKeys(extra) {
		if c := compareLabel(a, b, name, nil); c != 0 {
			return c
		}
	}
	return 0
}

func compareLabel(a, b ValueObject, name string, position func(LabelValue) (int, bool)) int {
	av, aok := a.Labels[name]
	bv, bok := b.Labels[name]
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	if position != nil {
		ai, aknown := position(av)
		bi, bknown := position(bv)
		switch {
		case aknown && bknown:
			return ai - bi
		case aknown:
			return -1
		case bknown:
			return 1
		}
	}
	ak, bk := av.key(), bv.key()
	switch {
	case ak < bk:
		return -1
	case ak > bk:
		return 1
	}
	return 0
}

func (ps *Parameters) logOp(op, param string, records int, start time.Time, err error) {
	event := LogEvent{
		Operation: op,
		Param:     param,
		Records:   records,
		Duration:  time.Since(start),
		Level:     LogLevelDebug,
		Err:       err,
	}
	if err != nil {
		event.Level = LogLevelError
	}
	ps.logger.Log(event)
}

func (ps *Parameters) emit(ctx context.Context, event activity.Event) {
	if !ps.emitter.Enabled() {
		return
	}
	if err := ps.emitter.Emit(ctx, event); err != nil {
		ps.logger.Log(LogEvent{
			Operation: "activity",
			Level:     LogLevelWarn,
			Message:   "activity hook failed",
			Err:       err,
		})
	}
}
