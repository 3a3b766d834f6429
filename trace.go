package paramgrid

import (
	"encoding/json"
	"sync"
)

// Trace captures the provenance of records synthesized by extension.
type Trace struct {
	Steps []Provenance `json:"steps"`
}

// Provenance details how one synthesized record was derived.
type Provenance struct {
	Param       string            `json:"param,omitempty"`
	Label       string            `json:"label"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Labels      map[string]string `json:"labels"`
	SourceValue any               `json:"source_value,omitempty"`
	Value       any               `json:"value,omitempty"`
}

// ForParam returns the steps recorded for param.
func (t Trace) ForParam(param string) []Provenance {
	var out []Provenance
	for _, step := range t.Steps {
		if step.Param == param {
			out = append(out, step)
		}
	}
	return out
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// TraceRecorder collects derivations. Pass Observe to ExtendTrace or
// AdjustTrace.
type TraceRecorder struct {
	mu    sync.Mutex
	steps []Provenance
}

// Observe records d.
func (r *TraceRecorder) Observe(d Derivation) {
	labels := make(map[string]string, len(d.Target.Labels))
	for name, v := range d.Target.Labels {
		labels[name] = v.String()
	}
	step := Provenance{
		Param:       d.Param,
		Label:       d.Label,
		From:        d.Source.Labels[d.Label].String(),
		To:          d.Target.Labels[d.Label].String(),
		Labels:      labels,
		SourceValue: d.Source.Value,
		Value:       d.Target.Value,
	}
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

// Trace returns the recorded steps in derivation order.
func (r *TraceRecorder) Trace() Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Trace{Steps: append([]Provenance(nil), r.steps...)}
}
