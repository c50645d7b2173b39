// Package cast converts loosely typed values from decoded JSON, YAML and TOML (Request.Params,
// catalog files) into the concrete types vendor SDKs expect.
package cast

import (
	"encoding/json"
	"math"
)

// ToFloat64 converts a numeric value to float64. Supports int/uint/float types and json.Number.
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	if u, ok := v.(uint64); ok {
		return float64(u), true
	}
	if u, ok := v.(uint); ok {
		return float64(u), true
	}
	return 0, false
}

// ToInt64 converts a numeric value to int64. Unsigned values above math.MaxInt64 are clamped;
// floats are truncated and NaN or Inf are rejected.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case uint:
		return clampUint(uint64(x)), true
	case uint64:
		return clampUint(x), true
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return fromFloat(f)
	}
	return toInt(v)
}

// ToInt32 is ToInt64 clamped to the int32 range, for SDKs that declare 32-bit fields.
func ToInt32(v any) (int32, bool) {
	i, ok := ToInt64(v)
	if !ok {
		return 0, false
	}
	switch {
	case i > math.MaxInt32:
		return math.MaxInt32, true
	case i < math.MinInt32:
		return math.MinInt32, true
	default:
		return int32(i), true
	}
}

// ToStringSlice converts v to []string. Accepts []string, []any where each element is a string,
// or a single string.
func ToStringSlice(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case string:
		return []string{x}, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	default:
		return 0, false
	}
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}

func fromFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
