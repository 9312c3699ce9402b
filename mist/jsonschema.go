package mist

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const jsonSchemaDraft = "http://json-schema.org/draft-07/schema#"

// JSONSchema renders a draft-07 JSON Schema for the wire encoding of
// messages of schemaID, as produced by message.Message.ToJSON.
//
// The schema covers top-level fields only. Fields whose templates carry
// dependencies are left unconstrained since their rules depend on other
// fields, so a payload the schema accepts may still fail ValidateMessage.
func (s *Specification) JSONSchema(schemaID string) ([]byte, error) {
	mt, err := s.lookup(schemaID)
	if err != nil {
		return nil, err
	}
	kind, err := mt.Kind()
	if err != nil {
		return nil, err
	}

	var (
		required []any
		rules    = []any{map[string]any{"$ref": "#/definitions/field"}}
	)
	depth := 0
	for _, ft := range s.combinedFields(mt, kind) {
		switch {
		case ft.IsArrayStart():
			depth++
			continue
		case ft.IsArrayEnd():
			depth--
			continue
		}
		if depth > 0 || ft.mode == ModeControl || len(ft.deps) > 0 || strings.Contains(ft.name, indexPlaceholder) {
			continue
		}

		constraint := fieldConstraint(ft)
		if ft.mode == ModeRequired {
			required = append(required, map[string]any{
				"contains": map[string]any{
					"properties": merge(map[string]any{"name": map[string]any{"const": ft.name}}, constraint),
					"required":   []string{"name"},
				},
			})
		}
		if len(constraint) > 0 {
			rules = append(rules, map[string]any{
				"if":   map[string]any{"properties": map[string]any{"name": map[string]any{"const": ft.name}}},
				"then": map[string]any{"properties": constraint},
			})
		}
	}

	fields := map[string]any{
		"type":  "array",
		"items": map[string]any{"allOf": rules},
	}
	if len(required) > 0 {
		fields["allOf"] = required
	}

	doc := map[string]any{
		"$schema":     jsonSchemaDraft,
		"$id":         fmt.Sprintf("urn:gmsec:%d:%s", s.version, mt.schemaID),
		"title":       mt.schemaID,
		"description": mt.description,
		"type":        "object",
		"required":    []string{"subject", "kind", "fields"},
		"properties": map[string]any{
			"subject": map[string]any{"type": "string", "minLength": 1},
			"kind":    map[string]any{"const": kind.String()},
			"fields":  fields,
		},
		"definitions": map[string]any{
			"field": map[string]any{
				"type":     "object",
				"required": []string{"name", "type", "value"},
				"properties": map[string]any{
					"name":   map[string]any{"type": "string", "minLength": 1},
					"type":   map[string]any{"type": "string"},
					"value":  map[string]any{"type": "string"},
					"header": map[string]any{"type": "boolean"},
				},
			},
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// fieldConstraint restricts the type, and for text fields the value, of
// one wire field.
func fieldConstraint(ft *FieldTemplate) map[string]any {
	out := make(map[string]any)
	if len(ft.types) > 0 && !slices.Contains(ft.types, TypeVariable) {
		out["type"] = map[string]any{"enum": ft.types}
	}
	if len(ft.types) == 1 && ft.types[0] == "STRING" {
		switch {
		case len(ft.values) > 0:
			out["value"] = map[string]any{"enum": ft.values}
		case ft.pattern != "":
			out["value"] = map[string]any{"pattern": "^(?:" + ft.pattern + ")$"}
		}
	}
	return out
}

func merge(a, b map[string]any) map[string]any {
	out := maps.Clone(a)
	maps.Copy(out, b)
	return out
}
