// Package activity fans parameter-store events out to pluggable hooks.
package activity

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrIncompleteEvent is returned for events missing a verb or an object.
var ErrIncompleteEvent = errors.New("activity: event needs a verb and an object")

// Event is one parameter-store occurrence. IDs are plain strings so callers
// are not tied to a UUID type.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Complete reports whether the event names a verb and the object it acted on.
func (e Event) Complete() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks notifies each of its hooks in order.
type Hooks []ActivityHook

// Compact returns a copy of h without nil entries, or nil when none remain.
func (h Hooks) Compact() Hooks {
	out := slices.DeleteFunc(slices.Clone(h), func(hook ActivityHook) bool { return hook == nil })
	if len(out) == 0 {
		return nil
	}
	return out
}

// Notify normalizes event and hands it to every hook. A failing hook does not
// stop the ones after it; failures are joined and tagged with the position
// of the hook. Incomplete events reach no hook.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Complete() {
		return fmt.Errorf("%w: verb=%q object=%s/%s", ErrIncompleteEvent, event.Verb, event.ObjectType, event.ObjectID)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("activity: hook %d on %s: %w", i, event.Verb, err))
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent returns a trimmed copy of event. Metadata and recipients are
// copied, blank and repeated recipients dropped, and a missing timestamp set
// to now in UTC.
func NormalizeEvent(event Event) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID,
		&out.ObjectType, &out.ObjectID, &out.Channel, &out.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}
	out.Recipients = nil
	for _, r := range event.Recipients {
		r = strings.TrimSpace(r)
		if r != "" && !slices.Contains(out.Recipients, r) {
			out.Recipients = append(out.Recipients, r)
		}
	}
	out.Metadata = nil
	if len(event.Metadata) > 0 {
		out.Metadata = maps.Clone(event.Metadata)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}
	return out
}
