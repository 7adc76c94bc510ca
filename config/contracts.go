package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/sembridge/devices"
	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/fuzzy"
	"github.com/c360/sembridge/rules"
)

// The three contract documents cross a trust boundary: they are written
// by operators and integrations, not by this process. Each one is
// checked against its JSON Schema before the owning package parses it,
// so schema violations surface as load errors with field paths instead
// of zero values deep in the pipeline.

const sensorTypesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "sensor type configuration",
  "type": "object",
  "required": ["sensor_types"],
  "properties": {
    "sensor_types": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sensor_type", "universe_of_discourse", "linguistic_variables"],
        "properties": {
          "sensor_type": {"type": "string", "minLength": 1},
          "unit": {"type": "string"},
          "universe_of_discourse": {
            "type": "object",
            "required": ["min", "max"],
            "properties": {
              "min": {"type": "number"},
              "max": {"type": "number"}
            }
          },
          "confidence_threshold": {"type": "number", "minimum": 0, "maximum": 1},
          "linguistic_variables": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["term", "function_type", "parameters"],
              "properties": {
                "term": {"type": "string", "minLength": 1},
                "function_type": {"enum": ["triangular", "trapezoidal", "gaussian", "sigmoid"]},
                "parameters": {"type": "array", "items": {"type": "number"}}
              }
            }
          }
        }
      }
    }
  }
}`

const rulesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "rule records",
  "type": "object",
  "required": ["rules"],
  "properties": {
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["rule_id", "rule_text", "priority"],
        "properties": {
          "rule_id": {"type": "string", "minLength": 1},
          "rule_text": {"type": "string", "minLength": 1},
          "priority": {"type": "integer"},
          "enabled": {"type": "boolean"},
          "created_timestamp": {"type": "string"},
          "last_triggered": {"type": ["string", "null"]},
          "trigger_count": {"type": "integer", "minimum": 0},
          "tags": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const devicesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "device capability descriptors",
  "type": "object",
  "required": ["devices"],
  "properties": {
    "devices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["device_id", "capabilities"],
        "properties": {
          "device_id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "room": {"type": "string"},
          "critical": {"type": "boolean"},
          "capabilities": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "constraints": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "properties": {
                "min": {"type": "number"},
                "max": {"type": "number"},
                "step": {"type": "number", "exclusiveMinimum": 0},
                "allowed_values": {"type": "array", "minItems": 1}
              }
            }
          }
        }
      }
    }
  }
}`

// LoadSensorTypes reads, schema-checks, and compiles the sensor type
// configuration document.
func LoadSensorTypes(path string) (fuzzy.Config, error) {
	data, err := readContract(path, sensorTypesSchema, "sensor type configuration")
	if err != nil {
		return fuzzy.Config{}, err
	}
	var cfg fuzzy.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fuzzy.Config{}, errors.WrapInvalid(err, "config", "LoadSensorTypes", "document decode")
	}
	if err := cfg.Validate(); err != nil {
		return fuzzy.Config{}, err
	}
	return cfg, nil
}

// LoadRules reads and schema-checks the rule document.
func LoadRules(path string) ([]rules.Rule, error) {
	data, err := readContract(path, rulesSchema, "rule records")
	if err != nil {
		return nil, err
	}
	return rules.ParseDocument(data)
}

// LoadDevices reads and schema-checks the device capability document
// and builds the registry.
func LoadDevices(path string) (*devices.StaticRegistry, error) {
	data, err := readContract(path, devicesSchema, "device capability descriptors")
	if err != nil {
		return nil, err
	}
	return devices.ParseDocument(data)
}

func readContract(path, schema, name string) ([]byte, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "readContract", name+" read")
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, errors.WrapInvalid(err, "config", "readContract", name+" structure check")
	}
	if err := validateDocument(data, schema, name); err != nil {
		return nil, err
	}
	return data, nil
}

// validateDocument checks a document against its schema and renders
// violations with their field paths.
func validateDocument(data []byte, schema, name string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s document: %v", errors.ErrInvalidConfig, name, err),
			"config", "validateDocument", "schema validation")
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	for i, desc := range result.Errors() {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", desc.Field(), desc.Description())
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s document: %s", errors.ErrInvalidConfig, name, b.String()),
		"config", "validateDocument", "schema validation")
}
