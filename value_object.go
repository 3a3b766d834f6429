package paramgrid

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ValueField is the reserved name of the payload slot of a value object.
const ValueField = "value"

// ValueObject is one labeled record of a parameter: a concrete value for each
// label it specifies plus the payload. A nil Value marks a deletion when the
// record is merged.
type ValueObject struct {
	Labels map[string]LabelValue
	Value  any
}

// NewValueObject builds a record from raw label values.
func NewValueObject(value any, labels map[string]any) (ValueObject, error) {
	vo := ValueObject{Value: value, Labels: make(map[string]LabelValue, len(labels))}
	for name, raw := range labels {
		if name == ValueField {
			return ValueObject{}, fmt.Errorf("paramgrid: label name %q is reserved", ValueField)
		}
		lv, err := ValueOf(raw)
		if err != nil {
			return ValueObject{}, fmt.Errorf("paramgrid: label %q: %w", name, err)
		}
		vo.Labels[name] = lv
	}
	return vo, nil
}

// MustValueObject is NewValueObject that panics on invalid labels.
func MustValueObject(value any, labels map[string]any) ValueObject {
	vo, err := NewValueObject(value, labels)
	if err != nil {
		panic(err)
	}
	return vo
}

// Label returns the value of label name.
func (vo ValueObject) Label(name string) (LabelValue, bool) {
	v, ok := vo.Labels[name]
	return v, ok
}

// Has reports whether vo specifies label name.
func (vo ValueObject) Has(name string) bool {
	_, ok := vo.Labels[name]
	return ok
}

// IsDeletion reports whether merging vo removes the matching record.
func (vo ValueObject) IsDeletion() bool {
	return vo.Value == nil
}

// Schema returns the sorted label names used by vo.
func (vo ValueObject) Schema() []string {
	names := make([]string, 0, len(vo.Labels))
	for name := range vo.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signature returns a canonical key over the labels of vo. Two records share
// a signature exactly when they specify the same labels with the same values.
func (vo ValueObject) Signature() string {
	return vo.SignatureWithout()
}

// SignatureWithout is Signature ignoring the labels in drop.
func (vo ValueObject) SignatureWithout(drop ...string) string {
	var b strings.Builder
	for _, name := range vo.Schema() {
		if slices.Contains(drop, name) {
			continue
		}
		b.WriteString(strconv.Quote(name))
		b.WriteByte('=')
		b.WriteString(vo.Labels[name].key())
		b.WriteByte(';')
	}
	return b.String()
}

// Clone returns a copy of vo with a detached label map. The payload is
// shared.
func (vo ValueObject) Clone() ValueObject {
	out := ValueObject{Value: vo.Value, Labels: make(map[string]LabelValue, len(vo.Labels))}
	for name, v := range vo.Labels {
		out.Labels[name] = v
	}
	return out
}

// With returns a copy of vo with label name set to v.
func (vo ValueObject) With(name string, v LabelValue) ValueObject {
	out := vo.Clone()
	out.Labels[name] = v
	return out
}

// WithValue returns a copy of vo carrying value.
func (vo ValueObject) WithValue(value any) ValueObject {
	out := vo.Clone()
	out.Value = value
	return out
}

func (vo ValueObject) String() string {
	parts := make([]string, 0, len(vo.Labels)+1)
	for _, name := range vo.Schema() {
		parts = append(parts, fmt.Sprintf("%s=%s", name, vo.Labels[name]))
	}
	parts = append(parts, fmt.Sprintf("value=%v", vo.Value))
	return "{" + strings.Join(parts, ", ") + "}"
}

// ConsistentLabels returns the label schema shared by every record. ok is
// false when a record adds or omits a label another record uses. An empty
// input is consistent with an empty schema.
func ConsistentLabels(records []ValueObject) (schema []string, ok bool) {
	if len(records) == 0 {
		return nil, true
	}
	schema = records[0].Schema()
	for _, vo := range records[1:] {
		if len(vo.Labels) != len(schema) {
			return nil, false
		}
		for _, name := range schema {
			if !vo.Has(name) {
				return nil, false
			}
		}
	}
	return schema, true
}

func requireConsistentLabels(param string, records []ValueObject) ([]string, error) {
	schema, ok := ConsistentLabels(records)
	if ok {
		return schema, nil
	}
	seen := map[string]struct{}{}
	var schemas [][]string
	for _, vo := range records {
		s := vo.Schema()
		key := strings.Join(s, ",")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		schemas = append(schemas, s)
	}
	return nil, &InconsistentLabelsError{Param: param, Schemas: schemas}
}

func cloneRecords(records []ValueObject) []ValueObject {
	if records == nil {
		return nil
	}
	out := make([]ValueObject, len(records))
	for i, vo := range records {
		out[i] = vo.Clone()
	}
	return out
}
