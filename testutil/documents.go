package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360/sembridge/pipeline"
)

// Canonical configuration documents for a one-room temperature setup.
// They satisfy the embedded contract schemas, so tests that need a
// loadable document set can write these instead of inventing their own.

// SensorTypesDoc defines the temperature sensor type: cold below the
// comfort band, hot above it, with full membership of hot at 35.
const SensorTypesDoc = `{
  "sensor_types": [
    {
      "sensor_type": "temperature",
      "unit": "celsius",
      "universe_of_discourse": {"min": -20, "max": 60},
      "confidence_threshold": 0.2,
      "linguistic_variables": [
        {"term": "cold", "function_type": "trapezoidal", "parameters": [-20, -20, 5, 15]},
        {"term": "comfortable", "function_type": "triangular", "parameters": [10, 21, 28]},
        {"term": "hot", "function_type": "triangular", "parameters": [15, 35, 55]}
      ]
    }
  ]
}`

// RulesDoc holds two active rules and one disabled rule, so selector
// tests can see both filtering dimensions.
const RulesDoc = `{
  "rules": [
    {
      "rule_id": "rule-ac",
      "rule_text": "if the living room is hot, cool it to 22 degrees",
      "priority": 80,
      "enabled": true,
      "created_timestamp": "2026-01-10T09:00:00Z",
      "tags": ["comfort"]
    },
    {
      "rule_id": "rule-heater",
      "rule_text": "if the living room is cold, warm it to 21 degrees",
      "priority": 60,
      "enabled": true,
      "created_timestamp": "2026-01-10T09:05:00Z",
      "tags": ["comfort"]
    },
    {
      "rule_id": "rule-dormant",
      "rule_text": "if the hallway is cold, do nothing for now",
      "priority": 10,
      "enabled": false,
      "created_timestamp": "2026-01-11T09:00:00Z"
    }
  ]
}`

// DevicesDoc describes an AC with parameter constraints, a heater, and
// a critical door lock for pending-confirmation paths.
const DevicesDoc = `{
  "devices": [
    {
      "device_id": "ac_living_room",
      "name": "Living Room AC",
      "room": "living_room",
      "capabilities": ["set_temperature", "turn_on", "turn_off"],
      "constraints": {
        "set_temperature": {"min": 16, "max": 30, "step": 0.5}
      }
    },
    {
      "device_id": "heater_living_room",
      "name": "Living Room Heater",
      "room": "living_room",
      "capabilities": ["set_temperature", "turn_on", "turn_off"],
      "constraints": {
        "set_temperature": {"min": 5, "max": 28, "step": 0.5}
      }
    },
    {
      "device_id": "lock_front_door",
      "name": "Front Door Lock",
      "room": "hallway",
      "critical": true,
      "capabilities": ["lock", "unlock"]
    }
  ]
}`

// WriteDocuments writes the three canonical documents into dir and
// returns their paths in sensor-types, rules, devices order.
func WriteDocuments(tb testing.TB, dir string) (sensorTypes, ruleRecords, deviceDescriptors string) {
	tb.Helper()

	sensorTypes = writeDocument(tb, dir, "sensor_types.json", SensorTypesDoc)
	ruleRecords = writeDocument(tb, dir, "rules.json", RulesDoc)
	deviceDescriptors = writeDocument(tb, dir, "devices.json", DevicesDoc)
	return sensorTypes, ruleRecords, deviceDescriptors
}

func writeDocument(tb testing.TB, dir, name, content string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TemperatureReading builds a reading for the canonical temperature
// sensor type, stamped now.
func TemperatureReading(sensorID string, value float64) pipeline.Reading {
	return pipeline.Reading{
		SensorID:   sensorID,
		SensorType: "temperature",
		Value:      value,
		Timestamp:  time.Now().UTC(),
	}
}
