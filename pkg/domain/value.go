package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type of a variable.
type Kind string

const (
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// Value is a tagged union over the three variable types.
// The zero Value has no kind and is never stored.
type Value struct {
	kind Kind
	num  float64
	flag bool
	text string
}

// FloatValue wraps a float.
func FloatValue(v float64) Value { return Value{kind: KindFloat, num: v} }

// BoolValue wraps a boolean.
func BoolValue(v bool) Value { return Value{kind: KindBool, flag: v} }

// StringValue wraps a string (usually a file name).
func StringValue(v string) Value { return Value{kind: KindString, text: v} }

// Kind returns the type tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value carries no kind.
func (v Value) IsZero() bool { return v.kind == "" }

// AsFloat returns the float payload or ErrTypeMismatch.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, mismatch(KindFloat, v.kind)
	}
	return v.num, nil
}

// AsBool returns the boolean payload or ErrTypeMismatch.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, mismatch(KindBool, v.kind)
	}
	return v.flag, nil
}

// AsString returns the string payload or ErrTypeMismatch.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", mismatch(KindString, v.kind)
	}
	return v.text, nil
}

// String formats the payload as text. This is the form used for path
// substitution and for the persisted document.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return v.text
	}
}

// ParseValue interprets text as a literal of the given kind.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return Value{}, fmt.Errorf("%w: %q is not a finite number", ErrTypeMismatch, text)
		}
		return FloatValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, text)
		}
		return BoolValue(b), nil
	case KindString:
		return StringValue(text), nil
	default:
		return Value{}, fmt.Errorf("unknown variable kind %q", kind)
	}
}

// InferValue picks a kind for free text: boolean literals first, then
// numbers, otherwise a string.
func InferValue(text string) Value {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return FloatValue(f)
	}
	return StringValue(text)
}

func mismatch(want, have Kind) error {
	return fmt.Errorf("%w: want %s, have %s", ErrTypeMismatch, want, have)
}

// Variable holds the current value and the value restored on reset.
type Variable struct {
	Current  Value
	Original Value
}

// Kind returns the kind shared by both values.
func (v Variable) Kind() Kind { return v.Current.Kind() }
