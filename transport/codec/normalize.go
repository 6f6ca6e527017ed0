package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// decodeWire normalizes a freshly parsed wire form and dispatches it.
func decodeWire(wire []any) (Message, error) {
	for i, v := range wire {
		wire[i] = normalize(v)
	}
	m, err := Unmarshal(wire)
	if err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	return m, nil
}

// normalize folds the number and map representations of the different
// serializers into int64, uint64 (above MaxInt64 only), float64 and
// map[string]any, recursively.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(string(x), 10, 64); err == nil {
			return u
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return fromUint(x)
	case float32:
		return float64(x)
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			out[key] = normalize(e)
		}
		return out
	}
	return v
}

func fromUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}
