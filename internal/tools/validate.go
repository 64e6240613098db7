package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/rotisserie/eris"
)

// ErrInvalidInput marks a schema validation failure.
var ErrInvalidInput = eris.New("invalid input")

// Validate checks input against schema: it must be a JSON object, every
// required field must be present and non-null, and present fields must
// match their declared type, enum and bounds. Fields the schema does not
// declare are ignored. Empty input is treated as {}.
func Validate(schema Schema, input json.RawMessage) error {
	input = bytes.TrimSpace(input)
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil || params == nil {
		return eris.Wrap(ErrInvalidInput, "input must be a JSON object")
	}

	for _, field := range schema.Required {
		if v, ok := params[field]; !ok || v == nil {
			return eris.Wrapf(ErrInvalidInput, "missing required field: %s", field)
		}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		prop, ok := schema.Properties[key]
		if !ok {
			continue
		}
		value := params[key]
		if value == nil && !slices.Contains(schema.Required, key) {
			continue
		}
		if err := validateValue(prop, value); err != nil {
			return eris.Wrapf(ErrInvalidInput, "field %s: %s", key, err)
		}
	}
	return nil
}

func validateValue(p Property, value any) error {
	if err := validateType(value, p.Type); err != nil {
		return err
	}
	switch p.Type {
	case "string":
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, value.(string)) {
			return fmt.Errorf("%q is not one of %v", value, p.Enum)
		}
	case "number", "integer":
		f, _ := value.(json.Number).Float64()
		if p.Minimum != nil && f < *p.Minimum {
			return fmt.Errorf("%v is below minimum %v", f, *p.Minimum)
		}
		if p.Maximum != nil && f > *p.Maximum {
			return fmt.Errorf("%v is above maximum %v", f, *p.Maximum)
		}
	case "array":
		if p.Items == nil {
			return nil
		}
		for i, item := range value.([]any) {
			if err := validateValue(*p.Items, item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "":
		return nil
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if n, ok := value.(json.Number); ok {
			if _, err := n.Float64(); err == nil {
				return nil
			}
		}
	case "integer":
		if n, ok := value.(json.Number); ok {
			if f, err := n.Float64(); err == nil && math.Trunc(f) == f {
				return nil
			}
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %s", expected, jsonKind(value))
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
