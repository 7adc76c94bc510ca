package fuzzy

import (
	"fmt"

	"github.com/c360/sembridge/errors"
)

// Universe is the valid numeric range for a sensor type.
type Universe struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LinguisticVariable pairs a term name with its membership function shape
// and parameters, as configured.
type LinguisticVariable struct {
	Term       string    `json:"term"`
	Function   string    `json:"function_type"`
	Parameters []float64 `json:"parameters"`
}

// SensorTypeConfig describes how one sensor type is fuzzified. The variable
// order is meaningful: equal-degree terms keep configuration order in
// results.
type SensorTypeConfig struct {
	SensorType          string               `json:"sensor_type"`
	Unit                string               `json:"unit"`
	Universe            Universe             `json:"universe_of_discourse"`
	ConfidenceThreshold float64              `json:"confidence_threshold"`
	Variables           []LinguisticVariable `json:"linguistic_variables"`
}

// Config is the full membership configuration document for the engine.
type Config struct {
	SensorTypes []SensorTypeConfig `json:"sensor_types"`
}

// Validate compiles the configuration and reports the first problem found.
func (c Config) Validate() error {
	_, err := compileConfig(c)
	return err
}

type compiledTerm struct {
	term string
	fn   Function
}

type compiledSensor struct {
	unit      string
	universe  Universe
	threshold float64
	terms     []compiledTerm
}

// snapshot is one immutable compiled view of the configuration. The engine
// swaps whole snapshots on reload; nothing mutates one after compilation.
type snapshot struct {
	sensors map[string]*compiledSensor
}

func compileConfig(cfg Config) (*snapshot, error) {
	snap := &snapshot{sensors: make(map[string]*compiledSensor, len(cfg.SensorTypes))}

	for _, st := range cfg.SensorTypes {
		if st.SensorType == "" {
			return nil, invalidConfig("sensor type name is empty")
		}
		if _, dup := snap.sensors[st.SensorType]; dup {
			return nil, invalidConfig(fmt.Sprintf("duplicate sensor type %q", st.SensorType))
		}
		if st.Universe.Min >= st.Universe.Max {
			return nil, invalidConfig(fmt.Sprintf(
				"sensor type %q: universe min %g must be below max %g",
				st.SensorType, st.Universe.Min, st.Universe.Max))
		}
		if st.ConfidenceThreshold < 0 || st.ConfidenceThreshold > 1 {
			return nil, invalidConfig(fmt.Sprintf(
				"sensor type %q: confidence threshold %g outside [0,1]",
				st.SensorType, st.ConfidenceThreshold))
		}
		if len(st.Variables) == 0 {
			return nil, invalidConfig(fmt.Sprintf(
				"sensor type %q: no linguistic variables", st.SensorType))
		}

		cs := &compiledSensor{
			unit:      st.Unit,
			universe:  st.Universe,
			threshold: st.ConfidenceThreshold,
			terms:     make([]compiledTerm, 0, len(st.Variables)),
		}
		seen := make(map[string]struct{}, len(st.Variables))
		for _, v := range st.Variables {
			if v.Term == "" {
				return nil, invalidConfig(fmt.Sprintf(
					"sensor type %q: linguistic variable with empty term", st.SensorType))
			}
			if _, dup := seen[v.Term]; dup {
				return nil, invalidConfig(fmt.Sprintf(
					"sensor type %q: duplicate term %q", st.SensorType, v.Term))
			}
			seen[v.Term] = struct{}{}

			fn, err := Compile(v.Function, v.Parameters)
			if err != nil {
				return nil, fmt.Errorf("sensor type %q, term %q: %w", st.SensorType, v.Term, err)
			}
			cs.terms = append(cs.terms, compiledTerm{term: v.Term, fn: fn})
		}
		snap.sensors[st.SensorType] = cs
	}

	return snap, nil
}

func invalidConfig(detail string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, detail),
		"fuzzy", "compileConfig", "membership configuration validation")
}
