package state_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/goliatone/go-paramgrid/pkg/state"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := state.NewMemoryStore[map[string]any]()
	ref := state.Scenario("tax-parameters", "reform")
	ctx := context.Background()

	if _, _, ok, err := store.Load(ctx, ref); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}
	if _, err := store.Save(ctx, ref, map[string]any{"rate": 0.1}, state.Meta{SnapshotID: "snap-1", ETag: "v1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	extra := map[string]string{"author": "analyst"}
	saved, err := store.Save(ctx, ref, map[string]any{"rate": 0.2}, state.Meta{SnapshotID: "snap-2", ETag: "v2", Extra: extra})
	if err != nil || saved.ETag != "v2" {
		t.Fatalf("save: meta=%+v err=%v", saved, err)
	}
	extra["author"] = "changed"

	snapshot, meta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if snapshot["rate"] != 0.2 || meta.SnapshotID != "snap-2" {
		t.Fatalf("expected latest save, got %v %+v", snapshot, meta)
	}
	if meta.Extra["author"] != "analyst" {
		t.Fatalf("stored meta must be detached from the caller, got %v", meta.Extra)
	}
	meta.Extra["author"] = "mutated"
	if _, again, _, _ := store.Load(ctx, ref); again.Extra["author"] != "analyst" {
		t.Fatalf("loaded meta must be a copy, got %v", again.Extra)
	}
	history, err := store.History(ref)
	if err != nil || len(history) != 1 {
		t.Fatalf("default store keeps one save, got %v err=%v", history, err)
	}
}

func TestMemoryStoreHistory(t *testing.T) {
	store := state.NewMemoryStore[int](state.WithHistory(2))
	ref := state.Baseline("tax")
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		if _, err := store.Save(ctx, ref, i, state.Meta{SnapshotID: id}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	history, err := store.History(ref)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var ids []string
	for _, meta := range history {
		ids = append(ids, meta.SnapshotID)
	}
	if !slices.Equal(ids, []string{"c", "b"}) {
		t.Fatalf("expected newest two saves, got %v", ids)
	}
	if got, _, _, _ := store.Load(ctx, ref); got != 2 {
		t.Fatalf("expected latest snapshot, got %d", got)
	}
}

func TestMemoryStoreRefsAndDelete(t *testing.T) {
	store := state.NewMemoryStore[int]()
	ctx := context.Background()
	for _, ref := range []state.Ref{state.Scenario("tax", "b"), state.Baseline("tax"), state.User("tax", "u1"), state.Scenario("tax", "a")} {
		if _, err := store.Save(ctx, ref, 1, state.Meta{}); err != nil {
			t.Fatalf("save %s: %v", ref, err)
		}
	}
	want := []state.Ref{state.Baseline("tax"), state.Scenario("tax", "a"), state.Scenario("tax", "b"), state.User("tax", "u1")}
	if got := store.Refs(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := store.Delete(ctx, state.Scenario("tax", "a")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, state.Scenario("tax", "missing")); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if len(store.Refs()) != 3 {
		t.Fatalf("expected 3 refs after delete, got %v", store.Refs())
	}
}

func TestMemoryStoreRejectsInvalidRef(t *testing.T) {
	store := state.NewMemoryStore[int]()
	ctx := context.Background()
	if _, err := store.Save(ctx, state.Ref{Domain: "tax", Kind: state.KindScenario}, 1, state.Meta{}); !errors.Is(err, state.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
	if _, _, _, err := store.Load(ctx, state.Ref{}); !errors.Is(err, state.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
	if _, err := store.History(state.Ref{Domain: "tax"}); !errors.Is(err, state.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}
