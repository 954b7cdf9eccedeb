package dispatch

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sandevgo/opsbot/internal/core"
)

type schema struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

type property struct {
	Type string `json:"type"`
}

// validateArgs checks the raw argument payload against the descriptor's
// JSON schema: valid JSON object, required fields present, primitive
// types match. Unknown fields pass through untouched; remote MCP schemas
// are often richer than what we interpret here.
func validateArgs(rawSchema json.RawMessage, rawArgs string) error {
	if len(rawSchema) == 0 {
		return nil
	}

	var s schema
	if err := json.Unmarshal(rawSchema, &s); err != nil {
		// A descriptor with an unparseable schema must not block the
		// call; validation is best effort on our side.
		return nil
	}

	args := map[string]interface{}{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Errorf("%w: arguments are not a JSON object: %v", core.ErrInvalidArguments, err)
		}
	}

	for _, field := range s.Required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("%w: missing required field %q", core.ErrInvalidArguments, field)
		}
	}

	for key, value := range args {
		propRaw, ok := s.Properties[key]
		if !ok {
			continue
		}
		var prop property
		if err := json.Unmarshal(propRaw, &prop); err != nil || prop.Type == "" {
			continue
		}
		if err := checkType(value, prop.Type); err != nil {
			return fmt.Errorf("%w: field %q: %v", core.ErrInvalidArguments, key, err)
		}
	}

	return nil
}

func checkType(value interface{}, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := value.(float64); ok {
			return nil
		}
	case "integer":
		if f, ok := value.(float64); ok && math.Trunc(f) == f {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]interface{}); ok {
			return nil
		}
	case "null":
		if value == nil {
			return nil
		}
	default:
		return nil
	}
	return fmt.Errorf("expected %s, got %T", expected, value)
}
