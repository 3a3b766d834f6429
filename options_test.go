package paramgrid

import (
	"context"
	"testing"

	"github.com/goliatone/go-paramgrid/pkg/activity"
)

func TestWithActivityHooksClonesAndFiltersNil(t *testing.T) {
	hook := activity.HookFunc(func(context.Context, activity.Event) error { return nil })

	ps, err := New(MustGrid(), nil, WithActivityHooks(activity.Hooks{nil, hook}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	hooks := ps.ActivityHooks()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}

	// Mutate returned slice and ensure original configuration is unaffected.
	hooks[0] = nil
	again := ps.ActivityHooks()
	if len(again) != 1 || again[0] == nil {
		t.Fatalf("expected cloned hooks unaffected by mutation, got %+v", again)
	}
}

func TestActivityHooksDefaultNil(t *testing.T) {
	ps, err := New(nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if hooks := ps.ActivityHooks(); hooks != nil {
		t.Fatalf("expected nil hooks by default, got %+v", hooks)
	}
	var nilSet *Parameters
	if hooks := nilSet.ActivityHooks(); hooks != nil {
		t.Fatalf("expected nil hooks on nil receiver, got %+v", hooks)
	}
}

func TestIndexRateOptions(t *testing.T) {
	if rates := applyOptions(nil).indexRates(); rates != nil {
		t.Fatalf("indexing must default off")
	}
	cfg := applyOptions([]Option{WithIndexRates(IndexRates{Int(2020): 0.1})})
	rates := cfg.indexRates()
	if rates == nil {
		t.Fatalf("WithIndexRates must turn indexing on")
	}
	if r, err := rates("p", Int(2020)); err != nil || r != 0.1 {
		t.Fatalf("unexpected rate %v err=%v", r, err)
	}
	if _, err := rates("p", Int(2021)); err == nil {
		t.Fatalf("expected missing rate error")
	}
	cfg = applyOptions([]Option{WithIndexRates(IndexRates{Int(2020): 0.1}), WithIndexing(false)})
	if cfg.indexRates() != nil {
		t.Fatalf("WithIndexing(false) must disable rates")
	}
	cfg = applyOptions([]Option{WithIndexRateFunc(nil)})
	if cfg.indexing {
		t.Fatalf("nil rate func must leave indexing off")
	}
}

func TestWithInitialStateCopiesInput(t *testing.T) {
	state := map[string]any{"year": 2020}
	opt := WithInitialState(state)
	state["year"] = 1990
	cfg := applyOptions([]Option{opt})
	if cfg.initialState["year"] != 2020 {
		t.Fatalf("expected copied state, got %v", cfg.initialState)
	}
}
