package paramgrid

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-paramgrid/pkg/activity"
)

func taxGrid(t *testing.T) *Grid {
	t.Helper()
	year, err := NewLabel("year", 2019, 2020, 2021, 2022)
	if err != nil {
		t.Fatalf("year: %v", err)
	}
	mars, err := NewLabel("MARS", "single", "joint")
	if err != nil {
		t.Fatalf("MARS: %v", err)
	}
	return MustGrid(year, mars)
}

func taxDefinitions() []Definition {
	return []Definition{
		{
			Name:    "standard_deduction",
			Title:   "Standard deduction",
			Indexed: true,
			Values: []ValueObject{
				MustValueObject(12000.0, map[string]any{"year": 2019, "MARS": "single"}),
				MustValueObject(24000.0, map[string]any{"year": 2019, "MARS": "joint"}),
			},
		},
		{
			Name:   "rate",
			Values: []ValueObject{MustValueObject(0.1, map[string]any{"year": 2019})},
		},
		{
			Name:   "filing_label",
			Values: []ValueObject{MustValueObject("default", nil)},
		},
	}
}

func taxRates() IndexRates {
	return IndexRates{Int(2019): 0.02, Int(2020): 0.02, Int(2021): 0.02}
}

func newTaxParameters(t *testing.T, opts ...Option) *Parameters {
	t.Helper()
	base := []Option{WithLabelToExtend("year"), WithIndexRates(taxRates())}
	ps, err := New(taxGrid(t), taxDefinitions(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new parameters: %v", err)
	}
	return ps
}

func recordAt(records []ValueObject, year int, mars string) (any, bool) {
	for _, vo := range records {
		if vo.Labels["year"] != Int(int64(year)) {
			continue
		}
		if mars != "" && vo.Labels["MARS"] != String(mars) {
			continue
		}
		return vo.Value, true
	}
	return nil, false
}

func mustValues(t *testing.T, ps *Parameters, name string) []ValueObject {
	t.Helper()
	records, err := ps.AllValues(name)
	if err != nil {
		t.Fatalf("values %s: %v", name, err)
	}
	return records
}

func TestNewExtendsParameters(t *testing.T) {
	ps := newTaxParameters(t)

	deduction := mustValues(t, ps, "standard_deduction")
	if len(deduction) != 8 {
		t.Fatalf("expected every year and status filled, got %d records", len(deduction))
	}
	cases := []struct {
		year int
		mars string
		want float64
	}{
		{2020, "single", 12240},
		{2021, "single", 12484.8},
		{2022, "single", 12734.5},
		{2022, "joint", 25468.99},
	}
	for _, tc := range cases {
		got, ok := recordAt(deduction, tc.year, tc.mars)
		if !ok || got != tc.want {
			t.Fatalf("%d/%s: expected %v, got %v", tc.year, tc.mars, tc.want, got)
		}
	}

	rate := mustValues(t, ps, "rate")
	if got, _ := recordAt(rate, 2022, ""); got != 0.1 || len(rate) != 4 {
		t.Fatalf("expected unindexed copies, got %v", rate)
	}
	if label := mustValues(t, ps, "filing_label"); len(label) != 1 {
		t.Fatalf("unlabeled parameter must not be extended, got %v", label)
	}
	if ps.LabelToExtend() != "year" {
		t.Fatalf("unexpected label to extend %q", ps.LabelToExtend())
	}
	if names := ps.Names(); !slices.Equal(names, []string{"standard_deduction", "rate", "filing_label"}) {
		t.Fatalf("expected declaration order, got %v", names)
	}
}

func TestNewWithoutIndexingCopies(t *testing.T) {
	ps := newTaxParameters(t, WithIndexing(false))
	got, _ := recordAt(mustValues(t, ps, "standard_deduction"), 2022, "single")
	if got != 12000.0 {
		t.Fatalf("expected plain copy with indexing off, got %v", got)
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	g := taxGrid(t)
	cases := []struct {
		name string
		defs []Definition
		opts []Option
		want error
	}{
		{
			name: "duplicate",
			defs: []Definition{{Name: "a"}, {Name: "a"}},
		},
		{
			name: "empty name",
			defs: []Definition{{Name: " "}},
		},
		{
			name: "inconsistent",
			defs: []Definition{{Name: "a", Values: []ValueObject{
				MustValueObject(1.0, map[string]any{"year": 2019}),
				MustValueObject(1.0, map[string]any{"MARS": "single"}),
			}}},
			want: ErrInconsistentLabels,
		},
		{
			name: "label to extend",
			defs: []Definition{{Name: "a"}},
			opts: []Option{WithLabelToExtend("region")},
			want: ErrUnknownLabel,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(g, tc.defs, tc.opts...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	_, err := New(g, []Definition{{Name: "a", Values: []ValueObject{
		MustValueObject(1.0, map[string]any{"year": 1990}),
	}}})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors["a"]) != 1 {
		t.Fatalf("expected grid validation error for a, got %v", err)
	}
}

func TestAdjustPropagatesForward(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()

	result, err := ps.Adjust(ctx, map[string][]ValueObject{
		"standard_deduction": {MustValueObject(13000.0, map[string]any{"year": 2020, "MARS": "single"})},
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	records := mustValues(t, ps, "standard_deduction")
	if len(records) != 8 {
		t.Fatalf("expected 8 records after adjustment, got %d", len(records))
	}
	checks := []struct {
		year int
		mars string
		want float64
	}{
		{2019, "single", 12000},
		{2020, "single", 13000},
		{2021, "single", 13260},
		{2022, "single", 13525.2},
		{2021, "joint", 24969.6},
	}
	for _, tc := range checks {
		got, ok := recordAt(records, tc.year, tc.mars)
		if !ok || got != tc.want {
			t.Fatalf("%d/%s: expected %v, got %v", tc.year, tc.mars, tc.want, got)
		}
	}
	if n := len(result.Extended["standard_deduction"]); n != 2 {
		t.Fatalf("expected 2 re-extended records, got %d", n)
	}
	if n := len(result.Applied["standard_deduction"]); n != 8 {
		t.Fatalf("expected merged list in result, got %d", n)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
}

func TestAdjustWithoutExtension(t *testing.T) {
	ps := newTaxParameters(t)
	result, err := ps.Adjust(context.Background(), map[string][]ValueObject{
		"standard_deduction": {MustValueObject(13000.0, map[string]any{"year": 2020, "MARS": "single"})},
	}, WithoutExtension())
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	records := mustValues(t, ps, "standard_deduction")
	if got, _ := recordAt(records, 2021, "single"); got != 12484.8 {
		t.Fatalf("later records must survive without extension, got %v", got)
	}
	if len(result.Extended) != 0 {
		t.Fatalf("expected no extension, got %v", result.Extended)
	}
}

func TestAdjustPartialLabelsApplyToMatches(t *testing.T) {
	ps := newTaxParameters(t)
	result, err := ps.Adjust(context.Background(), map[string][]ValueObject{
		"standard_deduction": {MustValueObject(0.0, map[string]any{"year": 2021})},
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	records := mustValues(t, ps, "standard_deduction")
	if len(records) != 8 {
		t.Fatalf("expected the grid to stay dense, got %d records", len(records))
	}
	checks := []struct {
		year int
		mars string
		want float64
	}{
		{2020, "single", 12240},
		{2021, "single", 0},
		{2021, "joint", 0},
		{2022, "single", 0},
		{2022, "joint", 0},
	}
	for _, tc := range checks {
		if got, ok := recordAt(records, tc.year, tc.mars); !ok || got != tc.want {
			t.Fatalf("%d/%s: expected %v, got %v", tc.year, tc.mars, tc.want, got)
		}
	}
	if n := len(result.Extended["standard_deduction"]); n != 2 {
		t.Fatalf("expected 2022 re-extended for both statuses, got %d", n)
	}

	_, err = ps.Adjust(context.Background(), map[string][]ValueObject{
		"standard_deduction": {MustValueObject(1.0, map[string]any{"year": 2020, "region": "eu"})},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors["standard_deduction"]) == 0 {
		t.Fatalf("labels outside the parameter must still fail validation, got %v", err)
	}
}

func TestAdjustValidationFailureAppliesNothing(t *testing.T) {
	ps := newTaxParameters(t)
	before := ps.Checkpoint()

	_, err := ps.Adjust(context.Background(), map[string][]ValueObject{
		"standard_deduction": {
			MustValueObject(1.0, map[string]any{"year": 2030, "MARS": "single"}),
			MustValueObject(1.0, map[string]any{"year": 2020, "MARS": "single", "region": "eu"}),
		},
		"rate":    {MustValueObject(0.2, map[string]any{"year": 2020})},
		"unknown": {MustValueObject(1.0, map[string]any{"year": 2020})},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Errors["standard_deduction"]) != 3 {
		t.Fatalf("expected value, label and schema errors, got %v", ve.Errors)
	}
	if len(ve.Errors["unknown"]) != 1 {
		t.Fatalf("expected unknown parameter error, got %v", ve.Errors)
	}
	if _, ok := ve.Errors["rate"]; ok {
		t.Fatalf("valid adjustment must not be reported, got %v", ve.Errors)
	}
	if after := ps.Checkpoint(); !reflect.DeepEqual(before, after) {
		t.Fatalf("validation failure must not change records")
	}
}

func TestAdjustWarnsOutsideState(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()
	if err := ps.SetState(ctx, map[string]any{"year": []int{2021, 2022}}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	result, err := ps.Adjust(ctx, map[string][]ValueObject{
		"rate": {MustValueObject(0.3, map[string]any{"year": 2020})},
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(result.Warnings["rate"]) != 1 || !strings.Contains(result.Warnings["rate"][0], "not active") {
		t.Fatalf("expected inactive warning, got %v", result.Warnings)
	}
	if got, _ := recordAt(mustValues(t, ps, "rate"), 2022, ""); got != 0.3 {
		t.Fatalf("expected adjustment applied anyway, got %v", got)
	}
}

func TestAdjustRunsValidator(t *testing.T) {
	var seen ValidationContext
	validator := ValidatorFunc(func(_ context.Context, vc ValidationContext, records []ValueObject) error {
		seen = vc
		ve := &ValidationError{}
		for _, vo := range records {
			if v, ok := vo.Value.(float64); ok && v < 0 {
				ve.addError(vc.Definition.Name, "must not be negative")
			}
			if v, ok := vo.Value.(float64); ok && v > 1 {
				ve.addWarning(vc.Definition.Name, "unusually high")
			}
		}
		if ve.HasErrors() || len(ve.Warnings) > 0 {
			return ve
		}
		return nil
	})
	ps := newTaxParameters(t, WithValidator(validator))
	ctx := context.Background()

	_, err := ps.Adjust(ctx, map[string][]ValueObject{
		"rate": {MustValueObject(-0.1, map[string]any{"year": 2020})},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors["rate"]) != 1 {
		t.Fatalf("expected validator error, got %v", err)
	}
	if seen.Definition.Name != "rate" || len(seen.Current) != 4 || seen.Grid == nil {
		t.Fatalf("unexpected validation context %+v", seen)
	}

	result, err := ps.Adjust(ctx, map[string][]ValueObject{
		"rate": {MustValueObject(1.5, map[string]any{"year": 2020})},
	})
	if err != nil {
		t.Fatalf("warnings must not block: %v", err)
	}
	if len(result.Warnings["rate"]) != 1 {
		t.Fatalf("expected validator warning, got %v", result.Warnings)
	}

	boom := errors.New("validator offline")
	failing := newTaxParameters(t, WithValidator(ValidatorFunc(func(context.Context, ValidationContext, []ValueObject) error {
		return boom
	})))
	if _, err := failing.Adjust(ctx, map[string][]ValueObject{
		"rate": {MustValueObject(0.2, map[string]any{"year": 2020})},
	}); !errors.Is(err, boom) {
		t.Fatalf("expected validator error returned as-is, got %v", err)
	}
}

func TestAdjustRestoresOnFailure(t *testing.T) {
	rateErr := errors.New("rates unavailable")
	failing := false
	rates := func(string, LabelValue) (float64, error) {
		if failing {
			return 0, rateErr
		}
		return 0.02, nil
	}
	ps := newTaxParameters(t, WithIndexRateFunc(rates))
	before := ps.Checkpoint()

	failing = true
	_, err := ps.Adjust(context.Background(), map[string][]ValueObject{
		"standard_deduction": {MustValueObject(13000.0, map[string]any{"year": 2020, "MARS": "single"})},
	})
	if !errors.Is(err, rateErr) {
		t.Fatalf("expected rate error, got %v", err)
	}
	if after := ps.Checkpoint(); !reflect.DeepEqual(before, after) {
		t.Fatalf("failed adjustment must restore every record")
	}
	selected, err := ps.Select("standard_deduction", MustFilter(map[string]any{"year": 2021, "MARS": "single"}), true)
	if err != nil || len(selected) != 1 || selected[0].Value != 12484.8 {
		t.Fatalf("index must reflect the restored records, got %v err=%v", selected, err)
	}
}

func TestExtendOptions(t *testing.T) {
	defs := []Definition{
		{Name: "a", Values: []ValueObject{MustValueObject(1.0, map[string]any{"year": 2019})}},
		{Name: "b", Values: []ValueObject{MustValueObject(2.0, map[string]any{"year": 2019})}},
	}
	ps, err := New(taxGrid(t), defs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if _, err := ps.Extend(ctx); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel without a label to extend, got %v", err)
	}
	if _, err := ps.Extend(ctx, ExtendLabel("year"), ExtendValues(1999)); !errors.Is(err, ErrUnknownLabelValue) {
		t.Fatalf("expected ErrUnknownLabelValue, got %v", err)
	}
	if _, err := ps.Extend(ctx, ExtendLabel("year"), ExtendOnly("c")); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}

	var recorder TraceRecorder
	out, err := ps.Extend(ctx, ExtendLabel("year"), ExtendValues(2019, 2020), ExtendOnly("a"), ExtendTrace(recorder.Observe))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if len(out["a"]) != 1 || len(out["b"]) != 0 {
		t.Fatalf("expected only a extended to 2020, got %v", out)
	}
	if got := mustValues(t, ps, "a"); len(got) != 2 {
		t.Fatalf("expected merged extension, got %v", got)
	}
	if got := mustValues(t, ps, "b"); len(got) != 1 {
		t.Fatalf("b must be untouched, got %v", got)
	}
	steps := recorder.Trace().ForParam("a")
	if len(steps) != 1 || steps[0].From != "2019" || steps[0].To != "2020" {
		t.Fatalf("unexpected trace %+v", steps)
	}
}

func TestStateNarrowsValues(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()

	if err := ps.SetState(ctx, map[string]any{"year": []int{2021, 2020}, "MARS": "single"}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	values, err := ps.Values("standard_deduction")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected two records inside the state, got %v", values)
	}
	if all := mustValues(t, ps, "standard_deduction"); len(all) != 8 {
		t.Fatalf("AllValues must ignore state, got %d", len(all))
	}
	if ix, _ := ps.LabelGrid().Index("year", Int(2021)); ix != 0 {
		t.Fatalf("state order must drive the label grid, got index %d", ix)
	}
	if ix, _ := ps.Grid().Index("year", Int(2021)); ix != 2 {
		t.Fatalf("declared grid must stay intact, got index %d", ix)
	}

	err = ps.SetState(ctx, map[string]any{"region": "eu", "year": 1999})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors["state"]) != 2 {
		t.Fatalf("expected two state errors, got %v", err)
	}
	if state := ps.State(); len(state["year"]) != 2 {
		t.Fatalf("failed SetState must keep the state, got %v", state)
	}

	ps.ClearState(ctx)
	values, _ = ps.Values("standard_deduction")
	if len(values) != 8 || len(ps.State()) != 0 {
		t.Fatalf("expected cleared state, got %d records and %v", len(values), ps.State())
	}
}

func TestInitialState(t *testing.T) {
	ps := newTaxParameters(t, WithInitialState(map[string]any{"year": 2022}))
	values, err := ps.Values("rate")
	if err != nil || len(values) != 1 {
		t.Fatalf("expected one rate record inside the initial state, got %v err=%v", values, err)
	}
	if _, err := New(taxGrid(t), nil, WithInitialState(map[string]any{"year": 1990})); err == nil {
		t.Fatalf("expected invalid initial state to fail")
	}
}

func TestSpecification(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()
	if err := ps.SetState(ctx, map[string]any{"year": 2020}); err != nil {
		t.Fatalf("set state: %v", err)
	}

	scoped := ps.Specification(true, nil)
	if len(scoped["standard_deduction"]) != 2 || len(scoped["rate"]) != 1 {
		t.Fatalf("expected state-limited spec, got %v", scoped)
	}
	if len(scoped["filing_label"]) != 1 {
		t.Fatalf("unlabeled records match any state, got %v", scoped["filing_label"])
	}

	full := ps.Specification(false, MustFilter(map[string]any{"MARS": "joint"}))
	joint := full["standard_deduction"]
	if len(joint) != 4 {
		t.Fatalf("expected every joint record, got %v", joint)
	}
	for i, year := range []int64{2019, 2020, 2021, 2022} {
		if joint[i].Labels["year"] != Int(year) {
			t.Fatalf("expected grid-sorted output, got %v", joint)
		}
	}
	if len(full["rate"]) != 4 {
		t.Fatalf("rate has no MARS label and must match as wildcard, got %v", full["rate"])
	}
}

func TestSelectUsesDeclaredGrid(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()
	if err := ps.SetState(ctx, map[string]any{"year": 2019}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	later, err := ps.SelectGt("rate", MustFilter(map[string]any{"year": 2020}), false)
	if err != nil {
		t.Fatalf("select gt: %v", err)
	}
	if len(later) != 2 {
		t.Fatalf("expected 2021 and 2022 regardless of state, got %v", later)
	}
	if _, err := ps.Select("missing", nil, false); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestCheckpointRestore(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()
	cp := ps.Checkpoint()

	if err := ps.SetState(ctx, map[string]any{"year": 2022}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if _, err := ps.Adjust(ctx, map[string][]ValueObject{
		"rate": {MustValueObject(0.5, map[string]any{"year": 2019})},
	}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	if err := ps.Restore(ctx, cp); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got, _ := recordAt(mustValues(t, ps, "rate"), 2022, ""); got != 0.1 {
		t.Fatalf("expected restored rate, got %v", got)
	}
	if len(ps.State()) != 0 || len(ps.LabelGrid().Values("year")) != 4 {
		t.Fatalf("expected restored state, got %v", ps.State())
	}

	bad := Checkpoint{Values: map[string][]ValueObject{"missing": nil}}
	if err := ps.Restore(ctx, bad); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	inconsistent := Checkpoint{Values: map[string][]ValueObject{"rate": {
		MustValueObject(1.0, map[string]any{"year": 2019}),
		MustValueObject(1.0, nil),
	}}}
	if err := ps.Restore(ctx, inconsistent); !errors.Is(err, ErrInconsistentLabels) {
		t.Fatalf("expected ErrInconsistentLabels, got %v", err)
	}

	for name, state := range map[string]map[string][]LabelValue{
		"value outside grid": {"year": {Int(2030)}},
		"unknown label":      {"region": {String("eu")}},
	} {
		t.Run(name, func(t *testing.T) {
			var ve *ValidationError
			err := ps.Restore(ctx, Checkpoint{State: state})
			if !errors.As(err, &ve) || len(ve.Errors["state"]) != 1 {
				t.Fatalf("expected state ValidationError, got %v", err)
			}
			if len(ps.State()) != 0 || len(ps.LabelGrid().Values("year")) != 4 {
				t.Fatalf("rejected checkpoint must not change state, got %v", ps.State())
			}
		})
	}
}

func TestSortValues(t *testing.T) {
	g := taxGrid(t)
	records := []ValueObject{
		MustValueObject(4.0, map[string]any{"year": 2020, "MARS": "joint"}),
		MustValueObject(2.0, map[string]any{"year": 2019, "MARS": "joint"}),
		MustValueObject(3.0, map[string]any{"year": 2020, "MARS": "single"}),
		MustValueObject(1.0, map[string]any{"year": 2019, "MARS": "single"}),
		MustValueObject(0.0, map[string]any{"MARS": "joint"}),
	}
	SortValues(records, g)
	if want := []float64{0, 1, 2, 3, 4}; !slices.Equal(payloads(records), want) {
		t.Fatalf("expected %v, got %v", want, payloads(records))
	}
}

func TestParameterArrayUsesState(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()
	if err := ps.SetState(ctx, map[string]any{"year": []int{2019, 2020}}); err != nil {
		t.Fatalf("set state: %v", err)
	}

	arr, err := ParameterArray[float64](ps, "standard_deduction")
	if err != nil {
		t.Fatalf("parameter array: %v", err)
	}
	if !slices.Equal(arr.Shape(), []int{2, 2}) {
		t.Fatalf("expected [2 2], got %v", arr.Shape())
	}
	if !slices.Equal(arr.Data(), []float64{12000, 24000, 12240, 24480}) {
		t.Fatalf("unexpected data %v", arr.Data())
	}

	doubled := make([]float64, arr.Len())
	for i, v := range arr.Data() {
		doubled[i] = v * 2
	}
	next, err := NewArray(arr.Shape(), doubled)
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	records, err := ParameterFromArray(ps, "standard_deduction", next)
	if err != nil {
		t.Fatalf("from array: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %v", records)
	}
	if got, _ := recordAt(mustValues(t, ps, "standard_deduction"), 2019, "single"); got != 12000.0 {
		t.Fatalf("ParameterFromArray must not merge, got %v", got)
	}
	if _, err := ps.Adjust(ctx, map[string][]ValueObject{"standard_deduction": records}, WithoutExtension()); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got, _ := recordAt(mustValues(t, ps, "standard_deduction"), 2020, "joint"); got != 48960.0 {
		t.Fatalf("expected doubled value, got %v", got)
	}

	if _, err := ParameterArray[float64](ps, "missing"); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	label, err := ParameterArray[string](ps, "filing_label")
	if err != nil || label.Ndim() != 0 {
		t.Fatalf("expected 0-d string array, got %v err=%v", label.Shape(), err)
	}
}

func TestAdjustEmitsActivity(t *testing.T) {
	hook := &activity.CaptureHook{}
	ps := newTaxParameters(t, WithActivityHooks(activity.Hooks{hook}))
	hook.Events = nil
	ctx := context.Background()

	_, err := ps.Adjust(ctx, map[string][]ValueObject{
		"standard_deduction": {MustValueObject(13000.0, map[string]any{"year": 2020, "MARS": "single"})},
	}, AdjustEvent(activity.ParameterEventInput{ActorID: "actor-1", TenantID: "tenant-1"}))
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(hook.Events) != 2 {
		t.Fatalf("expected adjusted and extended events, got %d", len(hook.Events))
	}
	adjusted, extended := hook.Events[0], hook.Events[1]
	if adjusted.Verb != activity.VerbParametersAdjusted || extended.Verb != activity.VerbParametersExtended {
		t.Fatalf("unexpected verbs %q %q", adjusted.Verb, extended.Verb)
	}
	if adjusted.ActorID != "actor-1" || adjusted.TenantID != "tenant-1" {
		t.Fatalf("expected actor routing, got %+v", adjusted)
	}
	if adjusted.ObjectID != "standard_deduction" || adjusted.Channel != activity.DefaultChannel {
		t.Fatalf("expected param object on default channel, got %+v", adjusted)
	}
	if extended.Metadata["records"] != 2 || extended.Metadata["label"] != "year" {
		t.Fatalf("unexpected extended metadata %+v", extended.Metadata)
	}

	hook.Events = nil
	if err := ps.SetState(ctx, map[string]any{"year": 2020}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if len(hook.Events) != 1 || hook.Events[0].Verb != activity.VerbParametersStateChanged {
		t.Fatalf("expected state event, got %+v", hook.Events)
	}
}

func TestActivityDisabledByConfig(t *testing.T) {
	hook := &activity.CaptureHook{}
	ps := newTaxParameters(t, WithActivityHooks(activity.Hooks{hook}), WithActivityConfig(activity.Config{Enabled: false}))
	if err := ps.SetState(context.Background(), map[string]any{"year": 2020}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if len(hook.Events) != 0 {
		t.Fatalf("expected no events when disabled, got %d", len(hook.Events))
	}
}

func TestActivityHookFailureIsLogged(t *testing.T) {
	hook := &activity.CaptureHook{Err: errors.New("hook down")}
	var events []LogEvent
	logger := LoggerFunc(func(event LogEvent) { events = append(events, event) })
	ps := newTaxParameters(t, WithActivityHooks(activity.Hooks{hook}), WithLogger(logger))

	events = nil
	if err := ps.SetState(context.Background(), map[string]any{"year": 2020}); err != nil {
		t.Fatalf("hook failures must not fail the operation: %v", err)
	}
	if len(events) != 1 || events[0].Operation != "activity" || events[0].Level != LogLevelWarn {
		t.Fatalf("expected warning log, got %+v", events)
	}
}

func TestAdjustLogsOperations(t *testing.T) {
	var events []LogEvent
	ps := newTaxParameters(t, WithLogger(LoggerFunc(func(event LogEvent) { events = append(events, event) })))
	events = nil

	if _, err := ps.Adjust(context.Background(), map[string][]ValueObject{
		"rate": {MustValueObject(0.2, map[string]any{"year": 2020})},
	}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(events) != 1 || events[0].Operation != "adjust" || events[0].Param != "rate" || events[0].Records != 1 {
		t.Fatalf("unexpected log events %+v", events)
	}

	events = nil
	_, _ = ps.Adjust(context.Background(), map[string][]ValueObject{"missing": nil})
	if len(events) != 1 || events[0].Level != LogLevelError || events[0].Err == nil {
		t.Fatalf("expected error log, got %+v", events)
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ps := newTaxParameters(t, WithLogger(NewSlogLogger(logger)))

	if _, err := ps.Adjust(context.Background(), map[string][]ValueObject{
		"rate": {MustValueObject(0.2, map[string]any{"year": 2020})},
	}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "operation=adjust") || !strings.Contains(out, "param=rate") {
		t.Fatalf("expected structured adjust record, got %q", out)
	}
	if NewSlogLogger(nil) == nil {
		t.Fatalf("nil slog logger must fall back to a no-op logger")
	}
}

func TestParametersConcurrentAccess(t *testing.T) {
	ps := newTaxParameters(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = ps.Adjust(ctx, map[string][]ValueObject{
					"rate": {MustValueObject(float64(i)/100, map[string]any{"year": 2020})},
				})
				return
			}
			_, _ = ps.Values("rate")
			_ = ps.Specification(false, nil)
		}(i)
	}
	wg.Wait()
	if got := mustValues(t, ps, "rate"); len(got) != 4 {
		t.Fatalf("expected 4 rate records, got %v", got)
	}
}
