package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrRejected is returned by Accepts when a value does not fit a schema.
var ErrRejected = errors.New("schema: value rejected")

// Accepts validates v against the structural part of s: types, properties
// and items. Enum candidates are not constraints and are ignored.
func (s *Schema) Accepts(v Value) error {
	loader := gojsonschema.NewGoLoader(structural(s))
	result, err := gojsonschema.Validate(loader, gojsonschema.NewGoLoader(ToAny(v)))
	if err != nil {
		return fmt.Errorf("schema: validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrRejected, strings.Join(msgs, "; "))
}

// structural renders s as a JSON Schema draft-4 document without enums.
func structural(s *Schema) map[string]any {
	out := map[string]any{}
	if s == nil {
		return out
	}
	switch len(s.Type) {
	case 0:
	case 1:
		out["type"] = string(s.Type[0])
	default:
		types := make([]any, 0, len(s.Type))
		for _, k := range s.Type {
			types = append(types, string(k))
		}
		out["type"] = types
	}
	if s.Properties != nil {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = structural(prop)
		}
		out["properties"] = props
	}
	if s.Items != nil {
		out["items"] = structural(s.Items)
	}
	return out
}
