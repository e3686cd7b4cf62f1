package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrNilValue is returned by Coerce for nil input.
var ErrNilValue = errors.New("nil value")

// Coerce converts a raw value into the canonical representation of the field:
// string for text and autocomplete, []string for related ids, and a scalar of the
// declared ValueType for filterable fields.
func (f FieldSpec) Coerce(v any) (any, error) {
	if isNil(v) {
		return nil, ErrNilValue
	}
	switch f.Kind {
	case Text, Autocomplete:
		return coerceText(v)
	case RelatedID:
		return coerceIDs(v)
	case Filterable:
		return CoerceScalar(f.Type, v)
	}
	return nil, fmt.Errorf("unsupported kind %q", f.Kind)
}

// CoerceScalar converts v into string, bool, float64 or time.Time (UTC) according to t.
func CoerceScalar(t ValueType, v any) (any, error) {
	if isNil(v) {
		return nil, ErrNilValue
	}
	switch t {
	case String:
		return coerceString(v)
	case Bool:
		return coerceBool(v)
	case Number:
		return coerceNumber(v)
	case Time:
		return coerceTime(v)
	}
	return nil, fmt.Errorf("unsupported value type %q", t)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func coerceText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case []string:
		return strings.Join(x, " "), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("cannot use %T as text", v)
}

func coerceString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case json.Number:
		return x.String(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return "", fmt.Errorf("cannot use %T as string", v)
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("cannot parse %q as bool", x)
		}
		return b, nil
	}
	return false, fmt.Errorf("cannot use %T as bool", v)
}

func coerceNumber(v any) (float64, error) {
	var n float64
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", x)
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", x)
		}
		n = f
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			n = rv.Float()
		default:
			return 0, fmt.Errorf("cannot use %T as number", v)
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("number %v is not finite", n)
	}
	return n, nil
}

func coerceTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, fmt.Errorf("zero time")
		}
		return x.UTC(), nil
	case *time.Time:
		return coerceTime(*x)
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse %q as RFC 3339 time", x)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot use %T as time", v)
}

func coerceIDs(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		out := make([]string, 0, len(x))
		for _, s := range x {
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case string:
		if x == "" {
			return []string{}, nil
		}
		return []string{x}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			elem := rv.Index(i).Interface()
			if isNil(elem) {
				continue
			}
			s, err := coerceString(elem)
			if err != nil {
				return nil, fmt.Errorf("related id [%d]: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	}

	s, err := coerceString(v)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}
