package engine

import (
	"fmt"
	"strconv"
	"time"
)

// PropKind is the declared type of an element property.
type PropKind int

// Property kinds understood by the coercion layer.
const (
	KindString PropKind = iota + 1
	KindBool
	KindInt
	KindUint
	KindFloat
	// KindNanoseconds is an unsigned nanosecond count, surfaced to Go
	// callers as time.Duration (e.g. queue min-threshold-time).
	KindNanoseconds
)

// String returns the kind name used in error messages.
func (k PropKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindNanoseconds:
		return "nanoseconds"
	default:
		return "unknown"
	}
}

// PropSpec is the declared schema of one element property.
type PropSpec struct {
	Name     string
	Kind     PropKind
	Writable bool
	Default  any
}

// Coerce converts interpreter text into the Go value matching the property
// schema. Returns ErrPropertyType (wrapped with detail) when the text does
// not parse as the declared kind.
func Coerce(spec PropSpec, text string) (any, error) {
	switch spec.Kind {
	case KindString:
		return text, nil
	case KindBool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrPropertyType, text)
		}
		return v, nil
	case KindInt:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an int", ErrPropertyType, text)
		}
		return v, nil
	case KindUint:
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a uint", ErrPropertyType, text)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float", ErrPropertyType, text)
		}
		return v, nil
	case KindNanoseconds:
		v, err := strconv.ParseUint(text, 10, 63)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a nanosecond count", ErrPropertyType, text)
		}
		return time.Duration(v), nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind for %s", ErrPropertyType, spec.Name)
	}
}
