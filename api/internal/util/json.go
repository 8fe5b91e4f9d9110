package util

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaOf reflects v into a JSON Schema object. With strict set every
// property becomes required, which is what OpenAI-style structured output
// expects.
func SchemaOf(v any, strict bool) (map[string]any, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	b, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("reflect schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("bad schema: %w", err)
	}
	delete(m, "$id")
	ensureSchemaMeta(m)
	if strict {
		FixJSONSchemaStrict(m)
	}
	return m, nil
}

// Some clients expect $schema to be present.
func ensureSchemaMeta(m map[string]any) {
	if _, ok := m["$schema"]; !ok {
		m["$schema"] = "http://json-schema.org/draft-07/schema#"
	}
}

// FixJSONSchemaStrict makes every object typed and lists all of its
// properties as required, recursively.
func FixJSONSchemaStrict(node any) {
	switch n := node.(type) {
	case map[string]any:
		if props, ok := n["properties"].(map[string]any); ok {
			if _, hasType := n["type"]; !hasType {
				n["type"] = "object"
			}
			req := make([]any, 0, len(props))
			for k := range props {
				req = append(req, k)
			}
			n["required"] = req
			for _, v := range props {
				FixJSONSchemaStrict(v)
			}
		}
		if items, ok := n["items"]; ok {
			switch it := items.(type) {
			case map[string]any:
				FixJSONSchemaStrict(it)
			case []any:
				for _, el := range it {
					FixJSONSchemaStrict(el)
				}
			}
		}
		for _, k := range []string{"oneOf", "anyOf", "allOf"} {
			if arr, ok := n[k].([]any); ok {
				for _, el := range arr {
					FixJSONSchemaStrict(el)
				}
			}
		}
	case []any:
		for _, v := range n {
			FixJSONSchemaStrict(v)
		}
	}
}
