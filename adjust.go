package paramgrid

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/goliatone/go-paramgrid/pkg/activity"
)

// AdjustOption configures one Adjust call.
type AdjustOption func(*adjustConfig)

type adjustConfig struct {
	skipExtension bool
	event         activity.ParameterEventInput
	trace         func(Derivation)
}

// WithoutExtension applies the adjustment without deleting later records or
// re-extending the adjusted parameters.
func WithoutExtension() AdjustOption {
	return func(cfg *adjustConfig) {
		cfg.skipExtension = true
	}
}

// AdjustEvent supplies the actor and routing fields of the activity events
// emitted for the adjustment.
func AdjustEvent(input activity.ParameterEventInput) AdjustOption {
	return func(cfg *adjustConfig) {
		cfg.event = input
	}
}

// AdjustTrace receives every record synthesized by the extension pass.
func AdjustTrace(fn func(Derivation)) AdjustOption {
	return func(cfg *adjustConfig) {
		cfg.trace = fn
	}
}

// AdjustResult reports what an adjustment changed.
type AdjustResult struct {
	// Applied holds the merged records per adjusted parameter.
	Applied map[string][]ValueObject
	// Extended holds the records synthesized after the merge.
	Extended map[string][]ValueObject
	// Warnings collects non-fatal validation messages per parameter.
	Warnings map[string][]string
}

// Adjust merges adjustments, keyed by parameter name, into the set.
//
// A record naming only some of the parameter's labels adjusts every record
// it matches. Records are checked against the declared grid and the
// configured Validator first; on any error nothing is applied. With a label to extend,
// each adjusted record first deletes the records of its group that sit
// later along that label, and the adjusted parameters are then extended
// again, so an adjustment propagates forward. Any failure after validation
// restores the set to its state before the call.
func (ps *Parameters) Adjust(ctx context.Context, adjustments map[string][]ValueObject, opts ...AdjustOption) (AdjustResult, error) {
	cfg := adjustConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	start := time.Now()
	adjustments = ps.expandAdjustments(adjustments)
	names, warnings, err := ps.validateAdjustments(ctx, adjustments)
	if err != nil {
		ps.logOp("adjust", "", 0, start, err)
		return AdjustResult{}, err
	}

	result := AdjustResult{
		Applied:  make(map[string][]ValueObject, len(names)),
		Extended: map[string][]ValueObject{},
		Warnings: warnings,
	}

	cp := ps.checkpointLocked()
	labelGrid := ps.labelGrid
	fail := func(err error) (AdjustResult, error) {
		ps.restoreLocked(cp, labelGrid)
		ps.logOp("adjust", "", 0, start, err)
		return AdjustResult{}, err
	}

	label := ps.cfg.labelToExtend
	extend := label != "" && !cfg.skipExtension
	for _, name := range names {
		p := ps.params[name]
		records := adjustments[name]
		if extend {
			sorted := SortValues(cloneRecords(records), ps.grid)
			deletions, inactive, err := ps.supersededBy(p, label, sorted)
			if err != nil {
				return fail(err)
			}
			for _, msg := range inactive {
				result.Warnings = appendWarning(result.Warnings, name, msg)
				ps.logger.Log(LogEvent{Operation: "adjust", Param: name, Level: LogLevelWarn, Message: msg})
			}
			if _, err := p.Update(ps.grid, deletions); err != nil {
				return fail(err)
			}
			records = sorted
		}
		merged, err := p.Update(ps.grid, records)
		if err != nil {
			return fail(err)
		}
		result.Applied[name] = merged
	}

	if extend {
		targets := make([]*Parameter, 0, len(names))
		for _, name := range names {
			targets = append(targets, ps.params[name])
		}
		extended, err := ExtendParameters(targets, label, ps.grid.Values(label), ps.cfg.indexRates(), cfg.trace)
		if err != nil {
			return fail(err)
		}
		for _, name := range names {
			records := extended[name]
			if len(records) == 0 {
				continue
			}
			merged, err := ps.params[name].Update(ps.grid, records)
			if err != nil {
				return fail(err)
			}
			result.Applied[name] = merged
			result.Extended[name] = records
		}
	}

	for _, name := range names {
		input := cfg.event
		input.Param = name
		input.Label = label
		input.Records = len(adjustments[name])
		ps.emit(ctx, activity.BuildParametersAdjustedEvent(input))
		if n := len(result.Extended[name]); n > 0 {
			input.Records = n
			ps.emit(ctx, activity.BuildParametersExtendedEvent(input))
		}
		ps.logOp("adjust", name, len(adjustments[name]), start, nil)
	}
	return result, nil
}

// expandAdjustments applies records that name only some of a parameter's
// labels to every existing record they match, so {year: 2021} on a
// year x MARS parameter adjusts 2021 for every MARS value. Records with no
// match, or with labels the parameter does not use, are kept for validation
// to report.
func (ps *Parameters) expandAdjustments(adjustments map[string][]ValueObject) map[string][]ValueObject {
	out := make(map[string][]ValueObject, len(adjustments))
	for name, records := range adjustments {
		p, ok := ps.params[name]
		if !ok {
			out[name] = records
			continue
		}
		schema := p.Schema()
		expanded := make([]ValueObject, 0, len(records))
		for _, vo := range records {
			if !namesSubset(vo, schema) {
				expanded = append(expanded, vo)
				continue
			}
			matches := p.Select(ps.grid, FilterOf(vo), false)
			if len(matches) == 0 {
				expanded = append(expanded, vo)
				continue
			}
			for _, match := range matches {
				expanded = append(expanded, match.WithValue(vo.Value))
			}
		}
		out[name] = expanded
	}
	return out
}

// namesSubset reports whether vo uses a strict subset of schema.
func namesSubset(vo ValueObject, schema []string) bool {
	if len(vo.Labels) >= len(schema) {
		return false
	}
	for name := range vo.Labels {
		if !slices.Contains(schema, name) {
			return false
		}
	}
	return true
}

// validateAdjustments checks every adjustment and returns the adjusted
// parameter names in declaration order along with validator warnings.
func (ps *Parameters) validateAdjustments(ctx context.Context, adjustments map[string][]ValueObject) ([]string, map[string][]string, error) {
	ve := &ValidationError{}
	for _, name := range sortedKeys(adjustments) {
		if _, ok := ps.params[name]; !ok {
			ve.addError(name, ErrUnknownParameter.Error())
		}
	}
	var names []string
	for _, name := range ps.order {
		records, ok := adjustments[name]
		if !ok {
			continue
		}
		names = append(names, name)
		p := ps.params[name]
		checkRecords(ve, name, ps.grid, p.values, records)
		vc := ValidationContext{
			Grid:       ps.grid,
			State:      cloneState(ps.state),
			Current:    p.values,
			Definition: p.Definition(),
		}
		if err := runValidator(ctx, ve, ps.cfg.validator, vc, records); err != nil {
			return nil, nil, err
		}
	}
	if ve.HasErrors() {
		return nil, nil, ve
	}
	return names, ve.Warnings, nil
}

// supersededBy returns deletions for every record of p in the same group as
// one of records that sits later along label, plus warnings for adjusted
// values outside the current state.
func (ps *Parameters) supersededBy(p *Parameter, label string, records []ValueObject) ([]ValueObject, []string, error) {
	var deletions []ValueObject
	var warnings []string
	seen := map[string]struct{}{}
	for _, vo := range records {
		at, ok := vo.Labels[label]
		if !ok {
			continue
		}
		if active, constrained := ps.state[label]; constrained && !slices.Contains(active, at) {
			warnings = append(warnings, fmt.Sprintf("%s=%s is not active in the current state; adjusting %s anyway", label, at, vo))
		}
		later, err := p.SelectGt(ps.grid, Filter{label: {at}}, false)
		if err != nil {
			return nil, nil, err
		}
		group := vo.SignatureWithout(label)
		for _, existing := range later {
			if existing.SignatureWithout(label) != group {
				continue
			}
			sig := existing.Signature()
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			deletions = append(deletions, existing.WithValue(nil))
		}
	}
	return deletions, warnings, nil
}

func appendWarning(warnings map[string][]string, param, msg string) map[string][]string {
	if warnings == nil {
		warnings = map[string][]string{}
	}
	warnings[param] = append(warnings[param], msg)
	return warnings
}

// ExtendOption configures one Extend call.
type ExtendOption func(*extendConfig)

type extendConfig struct {
	label  string
	values []any
	only   []string
	trace  func(Derivation)
}

// ExtendLabel overrides the configured label to extend.
func ExtendLabel(label string) ExtendOption {
	return func(cfg *extendConfig) {
		cfg.label = label
	}
}

// ExtendValues extends over values instead of the label's declared domain.
// values must be declared in the grid.
func ExtendValues(values ...any) ExtendOption {
	return func(cfg *extendConfig) {
		cfg.values = append([]any{}, values...)
	}
}

// ExtendOnly limits extension to the named parameters.
func ExtendOnly(names ...string) ExtendOption {
	return func(cfg *extendConfig) {
		cfg.only = append([]string(nil), names...)
	}
}

// ExtendTrace receives every synthesized record.
func ExtendTrace(fn func(Derivation)) ExtendOption {
	return func(cfg *extendConfig) {
		cfg.trace = fn
	}
}

// Extend synthesizes the records missing along the label to extend and
// merges them. It returns the synthesized records per parameter. Either
// every parameter is extended or none is.
func (ps *Parameters) Extend(ctx context.Context, opts ...ExtendOption) (map[string][]ValueObject, error) {
	cfg := extendConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.extendLocked(ctx, cfg)
}

func (ps *Parameters) extendLocked(ctx context.Context, cfg extendConfig) (map[string][]ValueObject, error) {
	start := time.Now()
	label := cfg.label
	if label == "" {
		label = ps.cfg.labelToExtend
	}
	if label == "" || !ps.grid.Has(label) {
		err := fmt.Errorf("%w: label to extend %q", ErrUnknownLabel, label)
		ps.logOp("extend", "", 0, start, err)
		return nil, err
	}
	values := ps.grid.Values(label)
	if cfg.values != nil {
		requested, err := filterValues(cfg.values)
		if err == nil {
			for _, v := range requested {
				if !ps.grid.Contains(label, v) {
					err = fmt.Errorf("%w: %s=%s", ErrUnknownLabelValue, label, v)
					break
				}
			}
		}
		if err != nil {
			ps.logOp("extend", "", 0, start, err)
			return nil, err
		}
		values = requested
	}

	names := ps.order
	if len(cfg.only) > 0 {
		for _, name := range cfg.only {
			if _, err := ps.lookup(name); err != nil {
				return nil, err
			}
		}
		names = cfg.only
	}
	targets := make([]*Parameter, 0, len(names))
	for _, name := range names {
		targets = append(targets, ps.params[name])
	}

	extended, err := ExtendParameters(targets, label, values, ps.cfg.indexRates(), cfg.trace)
	if err != nil {
		ps.logOp("extend", "", 0, start, err)
		return nil, err
	}

	cp := ps.checkpointLocked()
	labelGrid := ps.labelGrid
	for _, name := range names {
		records := extended[name]
		if len(records) == 0 {
			continue
		}
		if _, err := ps.params[name].Update(ps.grid, records); err != nil {
			ps.restoreLocked(cp, labelGrid)
			ps.logOp("extend", name, len(records), start, err)
			return nil, err
		}
		ps.logOp("extend", name, len(records), start, nil)
		ps.emit(ctx, activity.BuildParametersExtendedEvent(activity.ParameterEventInput{
			Param:   name,
			Label:   label,
			Records: len(records),
		}))
	}
	return extended, nil
}
