package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/jobflow/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	documentSchemaURL   = "https://jobflow.dev/schemas/document.json"
	descriptorSchemaURL = "https://jobflow.dev/schemas/node-type.json"
)

// documentSchemaJSON is the JSON Schema for persisted graph documents.
// Unknown properties are tolerated so documents saved by older designers still load.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://jobflow.dev/schemas/document.json",
  "type": "object",
  "required": ["cells"],
  "properties": {
    "cells": {
      "type": "array",
      "items": { "$ref": "#/$defs/cell" }
    }
  },
  "$defs": {
    "cell": {
      "type": "object",
      "required": ["id", "shape"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "shape": { "type": "string", "minLength": 1 },
        "position": { "$ref": "#/$defs/point" },
        "size": { "$ref": "#/$defs/size" },
        "expandSize": { "$ref": "#/$defs/size" },
        "parentId": { "type": "string" },
        "parent": { "type": "string" },
        "collapsed": { "type": "boolean" },
        "data": { "type": "object" },
        "source": { "$ref": "#/$defs/endpoint" },
        "target": { "$ref": "#/$defs/endpoint" },
        "label": { "type": "string" }
      },
      "if": {
        "properties": { "shape": { "enum": ["edge", "dag-edge"] } }
      },
      "then": { "required": ["source", "target"] },
      "else": { "required": ["position", "size"] }
    },
    "point": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": { "type": "number" },
        "y": { "type": "number" }
      }
    },
    "size": {
      "type": "object",
      "required": ["width", "height"],
      "properties": {
        "width": { "type": "number", "exclusiveMinimum": 0 },
        "height": { "type": "number", "exclusiveMinimum": 0 }
      }
    },
    "endpoint": {
      "type": "object",
      "anyOf": [
        { "required": ["nodeId", "portId"] },
        { "required": ["cell", "port"] }
      ],
      "properties": {
        "nodeId": { "type": "string", "minLength": 1 },
        "portId": { "type": "string", "minLength": 1 },
        "cell": { "type": "string", "minLength": 1 },
        "port": { "type": "string", "minLength": 1 }
      }
    }
  }
}`

// descriptorSchemaJSON is the JSON Schema for one catalog entry.
const descriptorSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://jobflow.dev/schemas/node-type.json",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "name": { "type": "string" },
    "kind": { "type": "string", "enum": ["leaf", "group"] },
    "icon": { "type": "string" },
    "category": { "type": "string" },
    "hidden": { "type": "boolean" },
    "fixed": { "type": "boolean" },
    "width": { "type": "number", "minimum": 0 },
    "height": { "type": "number", "minimum": 0 },
    "minWidth": { "type": "number", "minimum": 0 },
    "minHeight": { "type": "number", "minimum": 0 },
    "maxWidth": { "type": "number", "minimum": 0 },
    "maxHeight": { "type": "number", "minimum": 0 },
    "component": { "type": "string" },
    "ports": {
      "type": "array",
      "items": { "$ref": "#/$defs/port" }
    },
    "fields": {
      "type": "array",
      "items": { "$ref": "#/$defs/field" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "port": {
      "type": "object",
      "required": ["id", "group"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "group": { "type": "string", "enum": ["in", "out"] },
        "maxConnections": { "type": "integer", "minimum": 0 }
      },
      "additionalProperties": false
    },
    "field": {
      "type": "object",
      "required": ["prop", "type"],
      "properties": {
        "prop": { "type": "string", "minLength": 1 },
        "label": { "type": "string" },
        "type": {
          "type": "string",
          "enum": ["input", "textarea", "number", "switch", "radio", "select", "cron", "code", "map", "params", "password", "inputs"]
        },
        "value": {},
        "placeholder": { "type": "string" },
        "help": { "type": "string" },
        "required": { "type": "boolean" },
        "language": { "type": "string" },
        "options": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["value"],
            "properties": {
              "label": { "type": "string" },
              "value": {}
            }
          }
        },
        "visibleWhen": {
          "type": "object",
          "required": ["expression"],
          "properties": {
            "engine": { "type": "string", "enum": ["expr", "cel", "jq"] },
            "expression": { "type": "string", "minLength": 1 }
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates documents and descriptors against
// JSON Schema Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	documentSchema   *jsonschema.Schema
	descriptorSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the embedded schemas.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for url, src := range map[string]string{
		documentSchemaURL:   documentSchemaJSON,
		descriptorSchemaURL: descriptorSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", url, err)
		}
	}

	docSchema, err := c.Compile(documentSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	descSchema, err := c.Compile(descriptorSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile node type schema: %w", err)
	}

	return &JSONSchemaValidator{
		documentSchema:   docSchema,
		descriptorSchema: descSchema,
	}, nil
}

// ValidateDocument validates a Document against the document schema.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.Document) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeMalformedDocument, "document is nil")
	}
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeMalformedDocument, "failed to serialize document").WithCause(err)
	}
	if err := v.documentSchema.Validate(val); err != nil {
		return toFlowError(schema.ErrCodeMalformedDocument, err)
	}
	return nil
}

// ValidateDocumentJSON validates raw document bytes, including properties
// that the typed Document would drop.
func (v *JSONSchemaValidator) ValidateDocumentJSON(raw []byte) error {
	val, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeMalformedDocument, "document is not valid JSON").WithCause(err)
	}
	if err := v.documentSchema.Validate(val); err != nil {
		return toFlowError(schema.ErrCodeMalformedDocument, err)
	}
	return nil
}

// ValidateDescriptor validates a catalog entry against the node type schema.
func (v *JSONSchemaValidator) ValidateDescriptor(desc *schema.NodeTypeDescriptor) error {
	if desc == nil {
		return schema.NewError(schema.ErrCodeValidation, "node type descriptor is nil")
	}
	val, err := toJSONValue(desc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize node type").WithCause(err)
	}
	if err := v.descriptorSchema.Validate(val); err != nil {
		return toFlowError(schema.ErrCodeValidation, err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toFlowError converts a jsonschema.ValidationError into a FlowError
// listing every leaf violation.
func toFlowError(code string, err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(code, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(code, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(code, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(code, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
