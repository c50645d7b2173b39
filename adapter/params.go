package adapter

import (
	"github.com/skosovsky/aibridge/internal/cast"
)

// SamplingParams holds well-known sampling keys extracted from Request.Params.
// Use ExtractParams to populate from map[string]any.
type SamplingParams struct {
	TopP *float64
	TopK *int64
	Stop []string
	Seed *int64
}

// ExtractParams reads well-known keys from params and returns typed SamplingParams.
// Well-known keys: "top_p" (float64), "top_k" (int64), "stop" ([]string or string), "seed" (int64).
// Values of the wrong type are ignored.
func ExtractParams(params map[string]any) SamplingParams {
	var out SamplingParams
	if params == nil {
		return out
	}
	if v, ok := params["top_p"]; ok {
		if f, ok := cast.ToFloat64(v); ok {
			out.TopP = &f
		}
	}
	if v, ok := params["top_k"]; ok {
		if i, ok := cast.ToInt64(v); ok {
			out.TopK = &i
		}
	}
	if v, ok := params["stop"]; ok {
		if ss, ok := cast.ToStringSlice(v); ok {
			out.Stop = ss
		}
	}
	if v, ok := params["seed"]; ok {
		if i, ok := cast.ToInt64(v); ok {
			out.Seed = &i
		}
	}
	return out
}

// SchemaRequired returns the "required" list of a JSON Schema object.
func SchemaRequired(schema map[string]any) []string {
	if schema == nil {
		return nil
	}
	ss, _ := cast.ToStringSlice(schema["required"])
	return ss
}
