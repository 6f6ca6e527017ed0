package message

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
)

// maxSafeInteger is the largest integer a JSON number carries exactly; WAMP
// IDs are drawn from [0, 2^53].
const maxSafeInteger = 1 << 53

// checkFrame verifies the tag and length of a wire form before any field is
// read. lengths lists every valid length for t.
func checkFrame(wire []any, t Type, lengths ...int) error {
	if len(wire) == 0 {
		return fmt.Errorf("%w: empty wire form for %s", ErrInvalidLength, t)
	}
	tag, ok := toUint(wire[0])
	if !ok || tag != uint64(t) {
		return fmt.Errorf("%w: expected %s (%d), got %v", ErrTypeMismatch, t, int(t), wire[0])
	}
	if !slices.Contains(lengths, len(wire)) {
		return fmt.Errorf("%w: %s with %d elements, want one of %v", ErrInvalidLength, t, len(wire), lengths)
	}
	return nil
}

// toUint converts any integer representation a serializer may produce into a
// uint64. Negative, fractional and out-of-range values are rejected.
func toUint(v any) (uint64, bool) {
	if n, ok := v.(json.Number); ok {
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < 0 || f > maxSafeInteger || f != math.Trunc(f) {
			return 0, false
		}
		return uint64(f), true
	}
	return 0, false
}

func readID(wire []any, i int, name string) (ID, error) {
	n, ok := toUint(wire[i])
	if !ok {
		return 0, fmt.Errorf("%w: %s at %d must be a non-negative integer, got %T", ErrInvalidField, name, i, wire[i])
	}
	return ID(n), nil
}

func readType(wire []any, i int, name string) (Type, error) {
	n, ok := toUint(wire[i])
	if !ok || !Type(n).Valid() {
		return 0, fmt.Errorf("%w: %s at %d must be a message type, got %v", ErrInvalidField, name, i, wire[i])
	}
	return Type(n), nil
}

func readString(wire []any, i int, name string) (string, error) {
	switch s := wire[i].(type) {
	case string:
		return s, nil
	case URI:
		return string(s), nil
	}
	return "", fmt.Errorf("%w: %s at %d must be a string, got %T", ErrInvalidField, name, i, wire[i])
}

func readURI(wire []any, i int, name string) (URI, error) {
	s, err := readString(wire, i, name)
	return URI(s), err
}

func readDict(wire []any, i int, name string) (Dict, error) {
	switch d := wire[i].(type) {
	case map[string]any:
		return d, nil
	case map[any]any:
		out := make(Dict, len(d))
		for k, v := range d {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s at %d has non-string key %v", ErrInvalidField, name, i, k)
			}
			out[key] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s at %d must be a dictionary, got %T", ErrInvalidField, name, i, wire[i])
}

func readList(wire []any, i int, name string) (List, error) {
	if l, ok := wire[i].([]any); ok {
		return l, nil
	}
	rv := reflect.ValueOf(wire[i])
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, fmt.Errorf("%w: %s at %d must be a list, got %T", ErrInvalidField, name, i, wire[i])
	}
	out := make(List, rv.Len())
	for j := range out {
		out[j] = rv.Index(j).Interface()
	}
	return out, nil
}

// readPayload reads the optional args and kwargs starting at position i.
func readPayload(wire []any, i int) (List, Dict, error) {
	var (
		args   List
		kwargs Dict
		err    error
	)
	if len(wire) > i {
		if args, err = readList(wire, i, "args"); err != nil {
			return nil, nil, err
		}
	}
	if len(wire) > i+1 {
		if kwargs, err = readDict(wire, i+1, "kwargs"); err != nil {
			return nil, nil, err
		}
	}
	return listOrNil(args), dictOrNil(kwargs), nil
}

// appendPayload applies the tail-trim rule to args and kwargs.
func appendPayload(wire []any, args List, kwargs Dict) []any {
	switch {
	case len(kwargs) > 0:
		if args == nil {
			args = List{}
		}
		return append(wire, args, kwargs)
	case len(args) > 0:
		return append(wire, args)
	}
	return wire
}

func dictOrEmpty(d Dict) Dict {
	if d == nil {
		return Dict{}
	}
	return d
}

func dictOrNil(d Dict) Dict {
	if len(d) == 0 {
		return nil
	}
	return d
}

func listOrNil(l List) List {
	if len(l) == 0 {
		return nil
	}
	return l
}
