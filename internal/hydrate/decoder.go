// Package hydrate decodes sections of a defaults document into typed structs.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the section being decoded.
type Context struct {
	// Source names the document, usually a file path.
	Source string
	// Section is the top-level key of the document.
	Section string
}

func (c Context) String() string {
	if c.Source == "" {
		return fmt.Sprintf("section %q", c.Section)
	}
	return fmt.Sprintf("section %q of %s", c.Section, c.Source)
}

// PreHook rewrites the raw section before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook checks or completes the decoded struct.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts raw sections into T. Numbers are kept as json.Number so
// integers and floats stay distinguishable.
type Decoder[T any] struct {
	preHooks        []PreHook
	postHooks       []PostHook[T]
	disallowUnknown bool
}

// WithPreHook runs hook before decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook runs hook after decoding.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields rejects keys T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.disallowUnknown = true
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. Hooks see a copy of payload.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var out T
	if payload == nil {
		return out, fmt.Errorf("hydrate: %s is empty", ctx)
	}
	section, err := reencode[map[string]any](payload, false)
	if err != nil {
		return out, fmt.Errorf("hydrate: copy %s: %w", ctx, err)
	}
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, section)
		if err != nil {
			return out, fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx, err)
		}
		if next != nil {
			section = next
		}
	}
	if out, err = reencode[T](section, d.disallowUnknown); err != nil {
		return out, fmt.Errorf("hydrate: decode %s: %w", ctx, err)
	}
	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &out); err != nil {
			return out, fmt.Errorf("hydrate: post-hook for %s failed: %w", ctx, err)
		}
	}
	return out, nil
}

// Normalize converts json.Number values, at any depth, into int64 when they
// are whole and float64 otherwise.
func Normalize(v any) any {
	switch typed := v.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

// reencode passes v through JSON into a fresh Out, keeping numbers as
// json.Number.
func reencode[Out any](v any, strict bool) (Out, error) {
	var out Out
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if strict {
		dec.DisallowUnknownFields()
	}
	err = dec.Decode(&out)
	return out, err
}
