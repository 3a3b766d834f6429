package paramgrid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-paramgrid/internal/hydrate"
)

const schemaSection = "schema"

// Defaults is a decoded defaults document: the label grid, the parameter
// definitions in document order and the operators the document declares.
type Defaults struct {
	Grid        *Grid
	Definitions []Definition
	// LabelToExtend is the operators.label_to_extend entry.
	LabelToExtend string
	// Indexing is the operators.uses_extend_func entry.
	Indexing bool
}

// Options turns the declared operators into parameter set options.
func (d *Defaults) Options() []Option {
	var opts []Option
	if d.LabelToExtend != "" {
		opts = append(opts, WithLabelToExtend(d.LabelToExtend))
	}
	if d.Indexing {
		opts = append(opts, WithIndexing(true))
	}
	return opts
}

// New builds a parameter set from the document. Caller options are applied
// after the declared operators.
func (d *Defaults) New(opts ...Option) (*Parameters, error) {
	return New(d.Grid, d.Definitions, append(d.Options(), opts...)...)
}

// LoadDefaults reads a defaults document from path. Files ending in .hcl are
// parsed as HCL, .yaml and .yml as YAML, anything else as JSON.
func LoadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("paramgrid: read defaults: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return DecodeDefaultsHCL(data, path)
	case ".yaml", ".yml":
		return decodeDefaultsYAML(data, path)
	}
	return decodeDefaultsJSON(data, path)
}

// DecodeDefaults parses a JSON defaults document.
//
// The document holds a "schema" section declaring the labels and operators
// and one section per parameter:
//
//	{
//	  "schema": {
//	    "labels": {"year": {"type": "int", "validators": {"range": {"min": 2019, "max": 2022}}}},
//	    "operators": {"label_to_extend": "year", "uses_extend_func": true}
//	  },
//	  "rate": {"type": "float", "value": [{"year": 2019, "value": 0.1}]}
//	}
//
// Label and parameter order follow the document.
func DecodeDefaults(data []byte) (*Defaults, error) {
	return decodeDefaultsJSON(data, "")
}

func decodeDefaultsJSON(data []byte, source string) (*Defaults, error) {
	names, sections, err := orderedObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
	}
	raw := rawDefaults{source: source}
	for _, name := range names {
		if name == schemaSection {
			if err := raw.readSchema(sections[name]); err != nil {
				return nil, err
			}
			continue
		}
		payload, err := decodePayload(sections[name])
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrInvalidDefaults, name, err)
		}
		raw.params = append(raw.params, rawSection{name: name, payload: payload})
	}
	return raw.build()
}

type rawSection struct {
	name    string
	payload map[string]any
}

// rawDefaults collects the undecoded sections of a document. Both the JSON
// and the HCL readers fill it in the JSON shape.
type rawDefaults struct {
	source    string
	labels    []rawSection
	operators map[string]any
	params    []rawSection
}

func (r *rawDefaults) readSchema(data json.RawMessage) error {
	keys, schema, err := orderedObject(data)
	if err != nil {
		return fmt.Errorf("%w: schema: %v", ErrInvalidDefaults, err)
	}
	for _, key := range keys {
		switch key {
		case "labels":
			names, labels, err := orderedObject(schema[key])
			if err != nil {
				return fmt.Errorf("%w: schema labels: %v", ErrInvalidDefaults, err)
			}
			for _, name := range names {
				payload, err := decodePayload(labels[name])
				if err != nil {
					return fmt.Errorf("%w: label %q: %v", ErrInvalidDefaults, name, err)
				}
				r.labels = append(r.labels, rawSection{name: name, payload: payload})
			}
		case "operators":
			payload, err := decodePayload(schema[key])
			if err != nil {
				return fmt.Errorf("%w: operators: %v", ErrInvalidDefaults, err)
			}
			r.operators = payload
		}
	}
	return nil
}

type labelDoc struct {
	Type       string          `json:"type"`
	Values     []any           `json:"values"`
	Validators labelValidators `json:"validators"`
}

type labelValidators struct {
	Range  *rangeDoc  `json:"range"`
	Choice *choiceDoc `json:"choice"`
}

type rangeDoc struct {
	Min  any `json:"min"`
	Max  any `json:"max"`
	Step any `json:"step"`
}

type choiceDoc struct {
	Choices []any `json:"choices"`
}

type operatorsDoc struct {
	LabelToExtend  string `json:"label_to_extend"`
	UsesExtendFunc bool   `json:"uses_extend_func"`
}

type paramDoc struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	NumberDims  int              `json:"number_dims"`
	Indexed     bool             `json:"indexed"`
	Value       []map[string]any `json:"value"`
}

var (
	labelDecoder     = hydrate.NewDecoder[labelDoc]()
	operatorsDecoder = hydrate.NewDecoder[operatorsDoc]()
	paramDecoder     = hydrate.NewDecoder[paramDoc](
		hydrate.WithPreHook[paramDoc](wrapScalarValue),
		hydrate.WithPostHook[paramDoc](checkParamDoc),
	)
)

// wrapScalarValue lets an unlabeled parameter declare its value directly.
func wrapScalarValue(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	switch payload[ValueField].(type) {
	case nil, []any:
		return payload, nil
	case map[string]any:
		return nil, fmt.Errorf("value must be a list of records")
	}
	payload[ValueField] = []any{map[string]any{ValueField: payload[ValueField]}}
	return payload, nil
}

func checkParamDoc(_ hydrate.Context, doc *paramDoc) error {
	if doc.NumberDims < 0 {
		return fmt.Errorf("number_dims must not be negative")
	}
	return nil
}

func (r *rawDefaults) build() (*Defaults, error) {
	out := &Defaults{}
	kinds := make(map[string]Kind, len(r.labels))
	labels := make([]Label, 0, len(r.labels))
	for _, section := range r.labels {
		doc, err := labelDecoder.Decode(hydrate.Context{Source: r.source, Section: section.name}, section.payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
		}
		label, kind, err := doc.label(section.name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
		}
		kinds[section.name] = kind
		labels = append(labels, label)
	}
	grid, err := NewGrid(labels...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
	}
	out.Grid = grid

	if r.operators != nil {
		ops, err := operatorsDecoder.Decode(hydrate.Context{Source: r.source, Section: "operators"}, r.operators)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
		}
		out.LabelToExtend = ops.LabelToExtend
		out.Indexing = ops.UsesExtendFunc
	}

	for _, section := range r.params {
		doc, err := paramDecoder.Decode(hydrate.Context{Source: r.source, Section: section.name}, section.payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
		}
		def, err := doc.definition(section.name, kinds)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
		}
		out.Definitions = append(out.Definitions, def)
	}
	return out, nil
}

func (doc labelDoc) label(name string) (Label, Kind, error) {
	kind, err := parseKind(doc.Type)
	if err != nil {
		return Label{}, KindInvalid, fmt.Errorf("label %q: %w", name, err)
	}
	var raw []any
	switch {
	case len(doc.Values) > 0:
		raw = doc.Values
	case doc.Validators.Choice != nil:
		raw = doc.Validators.Choice.Choices
	case doc.Validators.Range != nil:
		raw, err = doc.Validators.Range.expand(kind)
		if err != nil {
			return Label{}, KindInvalid, fmt.Errorf("label %q: %w", name, err)
		}
	default:
		return Label{}, KindInvalid, fmt.Errorf("label %q declares no values", name)
	}
	out := Label{Name: name, Values: make([]LabelValue, 0, len(raw))}
	for _, v := range raw {
		lv, err := coerceLabel(kind, hydrate.Normalize(v))
		if err != nil {
			return Label{}, KindInvalid, fmt.Errorf("label %q: %w", name, err)
		}
		out.Values = append(out.Values, lv)
	}
	if kind == KindInvalid && len(out.Values) > 0 {
		kind = out.Values[0].Kind()
	}
	return out, kind, nil
}

// maxRangeValues bounds the grid a range validator may expand to.
const maxRangeValues = 100000

func (r rangeDoc) expand(kind Kind) ([]any, error) {
	first, last, step := hydrate.Normalize(r.Min), hydrate.Normalize(r.Max), hydrate.Normalize(r.Step)
	switch kind {
	case KindDate:
		lo, err := parseDate(first)
		if err != nil {
			return nil, fmt.Errorf("range min: %w", err)
		}
		hi, err := parseDate(last)
		if err != nil {
			return nil, fmt.Errorf("range max: %w", err)
		}
		days := int64(1)
		if step != nil {
			n, ok := step.(int64)
			if !ok || n <= 0 {
				return nil, fmt.Errorf("range step must be a positive number of days")
			}
			days = n
		}
		var out []any
		for d := lo; !d.After(hi); d = d.AddDate(0, 0, int(days)) {
			if len(out) == maxRangeValues {
				return nil, fmt.Errorf("range expands past %d values", maxRangeValues)
			}
			out = append(out, d)
		}
		return out, nil
	case KindInt, KindInvalid:
		lo, okLo := first.(int64)
		hi, okHi := last.(int64)
		if !okLo || !okHi {
			return nil, fmt.Errorf("int range needs integer min and max")
		}
		inc := int64(1)
		if step != nil {
			n, ok := step.(int64)
			if !ok || n <= 0 {
				return nil, fmt.Errorf("range step must be a positive integer")
			}
			inc = n
		}
		if (hi-lo)/inc >= maxRangeValues {
			return nil, fmt.Errorf("range expands past %d values", maxRangeValues)
		}
		var out []any
		for v := lo; v <= hi; v += inc {
			out = append(out, v)
		}
		return out, nil
	case KindFloat:
		lo, okLo := toFloat(first)
		hi, okHi := toFloat(last)
		inc, okStep := toFloat(step)
		if !okLo || !okHi {
			return nil, fmt.Errorf("float range needs numeric min and max")
		}
		if !okStep || inc <= 0 {
			return nil, fmt.Errorf("float range needs a positive step")
		}
		if (hi-lo)/inc >= maxRangeValues {
			return nil, fmt.Errorf("range expands past %d values", maxRangeValues)
		}
		var out []any
		for i := 0; ; i++ {
			v := lo + float64(i)*inc
			if v > hi {
				break
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("range is not supported for %s labels", kind)
}

func (doc paramDoc) definition(name string, kinds map[string]Kind) (Definition, error) {
	kind, err := parseKind(doc.Type)
	if err != nil {
		return Definition{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	def := Definition{
		Name:        name,
		Title:       doc.Title,
		Description: doc.Description,
		NumberDims:  doc.NumberDims,
		Indexed:     doc.Indexed,
		Values:      make([]ValueObject, 0, len(doc.Value)),
	}
	for i, raw := range doc.Value {
		payload, ok := raw[ValueField]
		if !ok {
			return Definition{}, fmt.Errorf("parameter %q: record %d has no %q", name, i, ValueField)
		}
		value, err := coercePayload(kind, hydrate.Normalize(payload))
		if err != nil {
			return Definition{}, fmt.Errorf("parameter %q: record %d: %w", name, i, err)
		}
		vo := ValueObject{Value: value, Labels: make(map[string]LabelValue, len(raw)-1)}
		for label, v := range raw {
			if label == ValueField {
				continue
			}
			labelKind, declared := kinds[label]
			if !declared {
				return Definition{}, fmt.Errorf("parameter %q: record %d: %w %q", name, i, ErrUnknownLabel, label)
			}
			lv, err := coerceLabel(labelKind, hydrate.Normalize(v))
			if err != nil {
				return Definition{}, fmt.Errorf("parameter %q: record %d: label %q: %w", name, i, label, err)
			}
			vo.Labels[label] = lv
		}
		def.Values = append(def.Values, vo)
	}
	return def, nil
}

func parseKind(name string) (Kind, error) {
	switch name {
	case "":
		return KindInvalid, nil
	case "str":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool":
		return KindBool, nil
	case "date":
		return KindDate, nil
	}
	return KindInvalid, fmt.Errorf("unknown type %q", name)
}

// coerceLabel converts a normalized document value into a label of kind.
// KindInvalid infers the kind from the value.
func coerceLabel(kind Kind, v any) (LabelValue, error) {
	switch kind {
	case KindInvalid:
		return ValueOf(v)
	case KindInt:
		switch typed := v.(type) {
		case int64:
			return Int(typed), nil
		case float64:
			if typed == float64(int64(typed)) {
				return Int(int64(typed)), nil
			}
		}
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return Float(f), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return String(s), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return Bool(b), nil
		}
	case KindDate:
		d, err := parseDate(v)
		if err != nil {
			return LabelValue{}, err
		}
		return Date(d), nil
	}
	return LabelValue{}, fmt.Errorf("%v (%T) is not a %s", v, v, kind)
}

// coercePayload converts every leaf of a normalized payload to kind.
func coercePayload(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if items, ok := v.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coercePayload(kind, item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	switch kind {
	case KindInvalid:
		return v, nil
	case KindInt:
		switch typed := v.(type) {
		case int64:
			return typed, nil
		case float64:
			if typed == float64(int64(typed)) {
				return int64(typed), nil
			}
		}
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindDate:
		d, err := parseDate(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPayloadType, err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %v (%T) is not a %s", ErrPayloadType, v, v, kind)
}

func parseDate(v any) (time.Time, error) {
	switch typed := v.(type) {
	case time.Time:
		return typed, nil
	case string:
		d, err := time.Parse(dateLayout, typed)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w", typed, err)
		}
		return d, nil
	}
	return time.Time{}, fmt.Errorf("%v (%T) is not a date", v, v)
}

func toFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	}
	return 0, false
}

// orderedObject splits a JSON object into its members, keeping key order.
func orderedObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}
	var names []string
	members := map[string]json.RawMessage{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("member %q: %w", name, err)
		}
		if _, dup := members[name]; dup {
			return nil, nil, fmt.Errorf("member %q declared twice", name)
		}
		names = append(names, name)
		members[name] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return names, members, nil
}

func decodePayload(data json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("expected an object")
	}
	return out, nil
}
