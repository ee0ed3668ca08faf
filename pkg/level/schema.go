package level

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// levelSchema constrains decoded level documents before they are mapped
// onto Go types.
const levelSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["meshes"],
  "properties": {
    "name": {"type": "string"},
    "id": {"type": "string", "format": "level_id"},
    "meshes": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/mesh"}
    }
  },
  "additionalProperties": false,
  "definitions": {
    "vec3": {
      "type": "array",
      "items": {"type": "number"},
      "minItems": 3,
      "maxItems": 3
    },
    "mesh": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["room", "box", "quad", "grid", "gat", "triangles"]},
        "min": {"$ref": "#/definitions/vec3"},
        "max": {"$ref": "#/definitions/vec3"},
        "points": {
          "type": "array",
          "items": {"$ref": "#/definitions/vec3"},
          "minItems": 4,
          "maxItems": 4
        },
        "double_sided": {"type": "boolean"},
        "rows": {
          "type": "array",
          "items": {"type": "string", "format": "grid_row"},
          "minItems": 1
        },
        "cell": {"type": "number", "exclusiveMinimum": 0},
        "height": {"type": "number", "exclusiveMinimum": 0},
        "origin": {"$ref": "#/definitions/vec3"},
        "file": {"type": "string", "minLength": 1},
        "triangles": {
          "type": "array",
          "items": {
            "type": "array",
            "items": {"$ref": "#/definitions/vec3"},
            "minItems": 3,
            "maxItems": 3
          }
        },
        "translate": {"$ref": "#/definitions/vec3"},
        "scale": {"$ref": "#/definitions/vec3"},
        "rotate_z": {"type": "number"}
      },
      "additionalProperties": false,
      "allOf": [
        {"if": {"properties": {"type": {"enum": ["room", "box"]}}}, "then": {"required": ["min", "max"]}},
        {"if": {"properties": {"type": {"const": "quad"}}}, "then": {"required": ["points"]}},
        {"if": {"properties": {"type": {"const": "grid"}}}, "then": {"required": ["rows", "cell", "height"]}},
        {"if": {"properties": {"type": {"const": "gat"}}}, "then": {"required": ["file", "cell", "height"]}},
        {"if": {"properties": {"type": {"const": "triangles"}}}, "then": {"required": ["triangles"]}}
      ]
    }
  }
}`

// levelIDFormatChecker accepts UUID strings.
type levelIDFormatChecker struct{}

// IsFormat implements gojsonschema.FormatChecker.
func (levelIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// gridRowFormatChecker accepts rows made of printable ASCII.
type gridRowFormatChecker struct{}

// IsFormat implements gojsonschema.FormatChecker.
func (gridRowFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}

var (
	schemaOnce   sync.Once
	schemaLoaded *gojsonschema.Schema
	schemaErr    error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("level_id", levelIDFormatChecker{})
		gojsonschema.FormatCheckers.Add("grid_row", gridRowFormatChecker{})
		schemaLoaded, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(levelSchema))
	})
	return schemaLoaded, schemaErr
}

// validateDocument checks a decoded YAML document against the level
// schema.
func validateDocument(doc map[string]interface{}) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load level schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidLevel, strings.Join(msgs, "; "))
	}
	return nil
}
