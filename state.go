package paramgrid

import (
	"context"
	"fmt"

	"github.com/goliatone/go-paramgrid/pkg/activity"
)

// SetState narrows the label grid to the given values. Each entry may be a
// scalar or a slice; labels not mentioned keep their current selection.
// Unknown labels or values leave the state unchanged and return a
// *ValidationError.
func (ps *Parameters) SetState(ctx context.Context, labels map[string]any) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.setStateLocked(labels); err != nil {
		return err
	}
	ps.emit(ctx, activity.BuildParametersStateChangedEvent(activity.ParameterEventInput{
		State: renderState(ps.state),
	}))
	return nil
}

func (ps *Parameters) setStateLocked(labels map[string]any) error {
	filter, err := NewFilter(labels)
	if err != nil {
		return err
	}
	if err := ps.checkState(filter); err != nil {
		return err
	}

	state := cloneState(ps.state)
	labelGrid := ps.labelGrid
	for _, name := range filter.Keys() {
		values := filter[name]
		labelGrid, err = labelGrid.WithValues(name, values)
		if err != nil {
			return err
		}
		state[name] = values
	}
	ps.state = state
	ps.labelGrid = labelGrid
	return nil
}

// checkState reports labels and values of state missing from the declared
// grid as a *ValidationError.
func (ps *Parameters) checkState(state map[string][]LabelValue) error {
	ve := &ValidationError{}
	for _, name := range sortedKeys(state) {
		if !ps.grid.Has(name) {
			ve.addError("state", fmt.Sprintf("unknown label %q", name))
			continue
		}
		for _, v := range state[name] {
			if !ps.grid.Contains(name, v) {
				ve.addError("state", fmt.Sprintf("value %s is not allowed for label %q", v.GoString(), name))
			}
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ClearState drops every label selection.
func (ps *Parameters) ClearState(ctx context.Context) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.state = map[string][]LabelValue{}
	ps.labelGrid = ps.grid.Clone()
	ps.emit(ctx, activity.BuildParametersStateChangedEvent(activity.ParameterEventInput{}))
}

// State returns a copy of the current label selection.
func (ps *Parameters) State() map[string][]LabelValue {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return cloneState(ps.state)
}

// Checkpoint is a copy of the records and state of a parameter set.
type Checkpoint struct {
	Values map[string][]ValueObject
	State  map[string][]LabelValue
}

// Checkpoint captures the current records and state.
func (ps *Parameters) Checkpoint() Checkpoint {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.checkpointLocked()
}

func (ps *Parameters) checkpointLocked() Checkpoint {
	cp := Checkpoint{
		Values: make(map[string][]ValueObject, len(ps.params)),
		State:  cloneState(ps.state),
	}
	for name, p := range ps.params {
		cp.Values[name] = cloneRecords(p.values)
	}
	return cp
}

// Restore replaces records and state with cp. Parameters missing from cp
// keep their records. Nothing changes if cp names an unknown parameter,
// holds inconsistent records, or selects labels or values outside the
// declared grid.
func (ps *Parameters) Restore(ctx context.Context, cp Checkpoint) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for name, records := range cp.Values {
		if _, err := ps.lookup(name); err != nil {
			return err
		}
		if _, err := requireConsistentLabels(name, records); err != nil {
			return err
		}
	}
	if err := ps.checkState(cp.State); err != nil {
		return err
	}
	labelGrid := ps.grid.Clone()
	for name, values := range cp.State {
		var err error
		labelGrid, err = labelGrid.WithValues(name, values)
		if err != nil {
			return err
		}
	}
	ps.restoreLocked(cp, labelGrid)
	ps.emit(ctx, activity.BuildParametersRestoredEvent(activity.ParameterEventInput{
		State: renderState(ps.state),
	}))
	return nil
}

// restoreLocked applies a checkpoint taken from this set.
func (ps *Parameters) restoreLocked(cp Checkpoint, labelGrid *Grid) {
	for name, records := range cp.Values {
		p := ps.params[name]
		p.values = cloneRecords(records)
		p.Invalidate()
	}
	ps.state = cloneState(cp.State)
	if labelGrid != nil {
		ps.labelGrid = labelGrid
	}
}

func cloneState(state map[string][]LabelValue) map[string][]LabelValue {
	out := make(map[string][]LabelValue, len(state))
	for name, values := range state {
		out[name] = append([]LabelValue(nil), values...)
	}
	return out
}

func renderState(state map[string][]LabelValue) map[string][]string {
	if len(state) == 0 {
		return nil
	}
	out := make(map[string][]string, len(state))
	for name, values := range state {
		rendered := make([]string, len(values))
		for i, v := range values {
			rendered[i] = v.String()
		}
		out[name] = rendered
	}
	return out
}
