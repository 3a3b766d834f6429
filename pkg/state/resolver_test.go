package state_test

import (
	"context"
	"errors"
	"testing"

	paramgrid "github.com/goliatone/go-paramgrid"
	"github.com/goliatone/go-paramgrid/pkg/state"
)

func TestResolverResolvePrefersFirstAvailableRef(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[paramgrid.Checkpoint]()
	resolver := state.Resolver{Store: store}

	baseline := newParameters(t)
	if _, err := resolver.Save(ctx, state.Baseline("tax"), baseline, state.Meta{}); err != nil {
		t.Fatalf("save baseline: %v", err)
	}

	scenario := newParameters(t)
	if err := adjustTo(14000, 2020)(ctx, scenario); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	scenarioMeta, err := resolver.Save(ctx, state.Scenario("tax", "reform"), scenario, state.Meta{})
	if err != nil {
		t.Fatalf("save scenario: %v", err)
	}

	ps := newParameters(t)
	ref, meta, err := resolver.Resolve(ctx, ps, state.Scenario("tax", "reform"), state.Baseline("tax"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ref.Kind != state.KindScenario {
		t.Fatalf("expected scenario ref, got %+v", ref)
	}
	if meta.SnapshotID != scenarioMeta.SnapshotID {
		t.Fatalf("expected scenario snapshot %q, got %q", scenarioMeta.SnapshotID, meta.SnapshotID)
	}
	if got := valueAt(t, ps, 2021); got != 14000.0 {
		t.Fatalf("expected scenario values restored, got %v", got)
	}

	other := newParameters(t)
	ref, _, err = resolver.Resolve(ctx, other, state.Scenario("tax", "missing"), state.Baseline("tax"))
	if err != nil {
		t.Fatalf("resolve fallback: %v", err)
	}
	if ref.Kind != state.KindBaseline {
		t.Fatalf("expected baseline fallback, got %+v", ref)
	}
	if got := valueAt(t, other, 2021); got != 12000.0 {
		t.Fatalf("expected baseline values, got %v", got)
	}
}

func TestResolverResolveNotFound(t *testing.T) {
	resolver := state.Resolver{Store: state.NewMemoryStore[paramgrid.Checkpoint]()}
	_, _, err := resolver.Resolve(context.Background(), newParameters(t), state.Baseline("tax"))
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolverSaveAssignsDistinctETags(t *testing.T) {
	ctx := context.Background()
	resolver := state.Resolver{Store: state.NewMemoryStore[paramgrid.Checkpoint]()}
	ps := newParameters(t)

	first, err := resolver.Save(ctx, state.Baseline("tax"), ps, state.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := resolver.Save(ctx, state.Baseline("tax"), ps, state.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ETag == second.ETag || first.SnapshotID == second.SnapshotID {
		t.Fatalf("expected fresh identifiers per save, got %+v and %+v", first, second)
	}
	if first.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}
}
