package paramgrid

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Kind identifies the concrete type carried by a LabelValue.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "str"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "invalid"
	}
}

const dateLayout = "2006-01-02"

// LabelValue is one concrete value of a label. It is comparable and can be
// used as a map key. Ordering between values is defined by a Grid, never by
// the underlying Go value.
type LabelValue struct {
	kind Kind
	str  string
	num  int64
	flt  float64
}

// String builds a string label value.
func String(v string) LabelValue {
	return LabelValue{kind: KindString, str: v}
}

// Int builds an integer label value.
func Int(v int64) LabelValue {
	return LabelValue{kind: KindInt, num: v}
}

// Float builds a float label value.
func Float(v float64) LabelValue {
	return LabelValue{kind: KindFloat, flt: v}
}

// Bool builds a boolean label value.
func Bool(v bool) LabelValue {
	lv := LabelValue{kind: KindBool}
	if v {
		lv.num = 1
	}
	return lv
}

// Date builds a date label value. The time of day and location are dropped.
func Date(t time.Time) LabelValue {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return LabelValue{kind: KindDate, num: day.Unix() / 86400}
}

// ValueOf converts a raw Go value into a LabelValue.
func ValueOf(v any) (LabelValue, error) {
	switch typed := v.(type) {
	case LabelValue:
		if typed.kind == KindInvalid {
			return LabelValue{}, fmt.Errorf("paramgrid: invalid label value")
		}
		return typed, nil
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case time.Time:
		return Date(typed), nil
	case float32:
		return Float(float64(typed)), nil
	case float64:
		return Float(typed), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return LabelValue{}, fmt.Errorf("paramgrid: label value %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.String:
		return String(rv.String()), nil
	}
	return LabelValue{}, fmt.Errorf("paramgrid: unsupported label value type %T", v)
}

// MustValue is ValueOf that panics on unsupported input.
func MustValue(v any) LabelValue {
	lv, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return lv
}

// Kind reports the variant held by v.
func (v LabelValue) Kind() Kind {
	return v.kind
}

// IsZero reports whether v was never assigned.
func (v LabelValue) IsZero() bool {
	return v.kind == KindInvalid
}

// Interface returns the Go value carried by v: string, int64, float64, bool
// or time.Time.
func (v LabelValue) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.num == 1
	case KindDate:
		return time.Unix(v.num*86400, 0).UTC()
	default:
		return nil
	}
}

func (v LabelValue) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindDate:
		return time.Unix(v.num*86400, 0).UTC().Format(dateLayout)
	default:
		return "<invalid>"
	}
}

// GoString renders v with its kind so sparse combinations stay unambiguous.
func (v LabelValue) GoString() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	return v.String()
}

func (v LabelValue) key() string {
	return v.kind.String() + ":" + strconv.Quote(v.String())
}
