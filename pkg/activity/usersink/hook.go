// Package usersink forwards parameter activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/goliatone/go-paramgrid/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook is an activity.ActivityHook writing go-users activity records.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs limits forwarding to the listed verbs. Empty forwards everything.
	Verbs []string
	// SystemActorID stands in for events emitted without an actor, such as
	// extension passes run at construction.
	SystemActorID uuid.UUID
}

// Notify logs event to the sink. Incomplete events and filtered verbs are
// skipped without error.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	record, ok := h.record(activity.NormalizeEvent(event))
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) record(event activity.Event) (usertypes.ActivityRecord, bool) {
	if !event.Complete() {
		return usertypes.ActivityRecord{}, false
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return usertypes.ActivityRecord{}, false
	}
	record := usertypes.ActivityRecord{
		ActorID:    uuidOrNil(event.ActorID),
		UserID:     uuidOrNil(event.UserID),
		TenantID:   uuidOrNil(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	if record.ActorID == uuid.Nil {
		record.ActorID = h.SystemActorID
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}

	data := maps.Clone(event.Metadata)
	if data == nil {
		data = map[string]any{}
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = slices.Clone(event.Recipients)
	}
	if len(data) > 0 {
		record.Data = data
	}
	return record, true
}

// uuidOrNil parses id, mapping anything that is not a UUID to uuid.Nil.
func uuidOrNil(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
