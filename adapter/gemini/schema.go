package gemini

import (
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/skosovsky/aibridge/adapter"
	"github.com/skosovsky/aibridge/internal/cast"
)

// errSchemaUnsupported marks JSON Schema constructs genai.Schema cannot express. Such tools are
// sent with ParametersJsonSchema instead.
var errSchemaUnsupported = errors.New("schema construct not supported")

// mapToGenaiSchema converts a JSON Schema object to genai.Schema. It handles type (including
// ["T", "null"]), properties, items, required, enum, format, description and anyOf.
func mapToGenaiSchema(m map[string]any) (*genai.Schema, error) {
	if m == nil {
		return nil, nil
	}
	for _, k := range []string{"$ref", "oneOf", "allOf", "not", "additionalProperties"} {
		if _, ok := m[k]; ok {
			return nil, fmt.Errorf("%w: %s", errSchemaUnsupported, k)
		}
	}
	s := &genai.Schema{}
	if err := setType(s, m["type"]); err != nil {
		return nil, err
	}
	if p, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(p))
		for k, v := range p {
			sub, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q: %w: not an object", k, errSchemaUnsupported)
			}
			conv, err := mapToGenaiSchema(sub)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", k, err)
			}
			s.Properties[k] = conv
		}
	}
	s.Required = adapter.SchemaRequired(m)
	if items, ok := m["items"].(map[string]any); ok {
		conv, err := mapToGenaiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = conv
	}
	if anyOf, ok := m["anyOf"].([]any); ok {
		for i, v := range anyOf {
			sub, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("anyOf[%d]: %w: not an object", i, errSchemaUnsupported)
			}
			conv, err := mapToGenaiSchema(sub)
			if err != nil {
				return nil, fmt.Errorf("anyOf[%d]: %w", i, err)
			}
			s.AnyOf = append(s.AnyOf, conv)
		}
	}
	if desc, ok := m["description"].(string); ok {
		s.Description = desc
	}
	if format, ok := m["format"].(string); ok {
		s.Format = format
	}
	if enum, ok := cast.ToStringSlice(m["enum"]); ok {
		s.Enum = enum
	}
	return s, nil
}

// setType handles "type" given as a string or as a two-element list with "null".
func setType(s *genai.Schema, v any) error {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		gt, err := jsonSchemaTypeToGenai(t)
		if err != nil {
			return err
		}
		s.Type = gt
		return nil
	}
	types, ok := cast.ToStringSlice(v)
	if !ok {
		return fmt.Errorf("%w: type %v", errSchemaUnsupported, v)
	}
	var nonNull []string
	for _, t := range types {
		if t == "null" {
			s.Nullable = genai.Ptr(true)
			continue
		}
		nonNull = append(nonNull, t)
	}
	if len(nonNull) != 1 {
		return fmt.Errorf("%w: type %v", errSchemaUnsupported, types)
	}
	gt, err := jsonSchemaTypeToGenai(nonNull[0])
	if err != nil {
		return err
	}
	s.Type = gt
	return nil
}

func jsonSchemaTypeToGenai(t string) (genai.Type, error) {
	switch t {
	case "string":
		return genai.TypeString, nil
	case "number":
		return genai.TypeNumber, nil
	case "integer":
		return genai.TypeInteger, nil
	case "boolean":
		return genai.TypeBoolean, nil
	case "array":
		return genai.TypeArray, nil
	case "object":
		return genai.TypeObject, nil
	default:
		return genai.TypeUnspecified, fmt.Errorf("%w: type %q", errSchemaUnsupported, t)
	}
}
