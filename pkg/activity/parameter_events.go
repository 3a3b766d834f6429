package activity

import (
	"maps"
	"strings"
	"time"
)

const (
	VerbParametersAdjusted     = "parameters.adjusted"
	VerbParametersExtended     = "parameters.extended"
	VerbParametersStateChanged = "parameters.state.changed"
	VerbParametersRestored     = "parameters.restored"
)

// ParameterEventInput describes the common fields for parameter lifecycle
// events.
type ParameterEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	// Param names the parameter the event is about. Set-wide events leave it
	// empty.
	Param string
	// Label is the extended label, if any.
	Label string
	// Records counts the records the operation produced or applied.
	Records    int
	State      map[string][]string
	SnapshotID string
	OccurredAt time.Time
}

// BuildParametersAdjustedEvent constructs an event for an applied adjustment.
func BuildParametersAdjustedEvent(input ParameterEventInput) Event {
	return buildParameterEvent(VerbParametersAdjusted, "parameter", input)
}

// BuildParametersExtendedEvent constructs an event for records synthesized by
// extension.
func BuildParametersExtendedEvent(input ParameterEventInput) Event {
	return buildParameterEvent(VerbParametersExtended, "parameter", input)
}

// BuildParametersStateChangedEvent constructs an event for a new label
// selection.
func BuildParametersStateChangedEvent(input ParameterEventInput) Event {
	return buildParameterEvent(VerbParametersStateChanged, "parameters.state", input)
}

// BuildParametersRestoredEvent constructs an event for a checkpoint restore.
func BuildParametersRestoredEvent(input ParameterEventInput) Event {
	return buildParameterEvent(VerbParametersRestored, "parameters", input)
}

func buildParameterEvent(verb, objectType string, input ParameterEventInput) Event {
	metadata := maps.Clone(input.Metadata)
	if input.Param != "" {
		metadata = ensureMetadata(metadata)
		metadata["param"] = input.Param
	}
	if input.Label != "" {
		metadata = ensureMetadata(metadata)
		metadata["label"] = input.Label
	}
	if input.Records > 0 {
		metadata = ensureMetadata(metadata)
		metadata["records"] = input.Records
	}
	if len(input.State) > 0 {
		metadata = ensureMetadata(metadata)
		state := make(map[string][]string, len(input.State))
		for label, values := range input.State {
			state[label] = append([]string{}, values...)
		}
		metadata["state"] = state
	}
	if input.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.SnapshotID
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Param)
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.SnapshotID)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
