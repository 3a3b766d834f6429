package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	paramgrid "github.com/goliatone/go-paramgrid"
)

// Resolver moves checkpoints between a Store and parameter sets.
type Resolver struct {
	Store Store[paramgrid.Checkpoint]
	// Now defaults to time.Now.
	Now func() time.Time
}

// Mutator edits a parameter set inside Resolver.Mutate.
type Mutator func(ctx context.Context, ps *paramgrid.Parameters) error

func (r Resolver) check(ps *paramgrid.Parameters) error {
	if r.Store == nil {
		return errors.New("state: store is required")
	}
	if ps == nil {
		return errors.New("state: parameters are required")
	}
	return nil
}

// Resolve restores the first checkpoint found among refs into ps and returns
// the ref it came from. Refs are tried in order, so list the most specific
// first. ErrNotFound is returned when no ref has a snapshot.
func (r Resolver) Resolve(ctx context.Context, ps *paramgrid.Parameters, refs ...Ref) (Ref, Meta, error) {
	if err := r.check(ps); err != nil {
		return Ref{}, Meta{}, err
	}
	if len(refs) == 0 {
		return Ref{}, Meta{}, errors.New("state: at least one ref is required")
	}
	for _, ref := range refs {
		cp, meta, ok, err := r.Store.Load(ctx, ref)
		if err != nil {
			return Ref{}, Meta{}, fmt.Errorf("state: load %s: %w", ref, err)
		}
		if !ok {
			continue
		}
		if err := ps.Restore(ctx, cp); err != nil {
			return Ref{}, Meta{}, fmt.Errorf("state: restore %s: %w", ref, err)
		}
		return ref, meta, nil
	}
	return Ref{}, Meta{}, fmt.Errorf("%w for domain %q", ErrNotFound, refs[0].Domain)
}

// Save stores the current checkpoint of ps under ref with a fresh snapshot
// ID and ETag.
func (r Resolver) Save(ctx context.Context, ref Ref, ps *paramgrid.Parameters, meta Meta) (Meta, error) {
	if err := r.check(ps); err != nil {
		return Meta{}, err
	}
	saved, err := r.Store.Save(ctx, ref, ps.Checkpoint(), r.stamp(meta))
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", ref, err)
	}
	return saved, nil
}

// Mutate loads the checkpoint at ref into ps, applies fn and saves the
// result. When meta.ETag is set it must match the stored ETag. If fn or the
// save fails, ps is returned to the checkpoint it held after loading.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, ps *paramgrid.Parameters, fn Mutator) (Meta, error) {
	if err := r.check(ps); err != nil {
		return Meta{}, err
	}
	if fn == nil {
		return Meta{}, errors.New("state: mutator is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}

	cp, stored, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %s: %w", ref, err)
	}
	if !ok {
		stored = Meta{}
	}
	if meta.ETag != "" && stored.ETag != "" && meta.ETag != stored.ETag {
		return stored, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, stored.ETag)
	}
	if ok {
		if err := ps.Restore(ctx, cp); err != nil {
			return stored, fmt.Errorf("state: restore %s: %w", ref, err)
		}
	}

	base := ps.Checkpoint()
	if err := fn(ctx, ps); err != nil {
		_ = ps.Restore(ctx, base)
		return stored, err
	}
	next := r.stamp(withOverrides(stored, Meta{UpdatedAt: meta.UpdatedAt, Extra: meta.Extra}))
	saved, err := r.Store.Save(ctx, ref, ps.Checkpoint(), next)
	if err != nil {
		_ = ps.Restore(ctx, base)
		return stored, fmt.Errorf("state: save %s: %w", ref, err)
	}
	return saved, nil
}

// stamp assigns a new snapshot ID and ETag, and the update time when unset.
func (r Resolver) stamp(meta Meta) Meta {
	out := cloneMeta(meta)
	out.SnapshotID = uuid.NewString()
	out.ETag = uuid.NewString()
	if out.UpdatedAt.IsZero() {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		out.UpdatedAt = now().UTC()
	}
	return out
}
