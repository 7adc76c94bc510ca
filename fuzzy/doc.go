// Package fuzzy is the semantic bridge between numeric sensor readings and
// the language the rule layer speaks: it turns raw values into linguistic
// terms with membership degrees.
//
// # Overview
//
// Three pieces cooperate:
//
//   - Membership functions (membership.go): pure shape functions
//     (triangular, trapezoidal, gaussian, sigmoid) compiled once from
//     configuration into closures. Evaluation never errors; bad parameters
//     are rejected at compile time.
//   - The Engine (engine.go): looks up the sensor type, evaluates every
//     term, filters by the configured confidence threshold, and returns a
//     Result sorted by descending degree. Identical readings within a short
//     window are served from a bounded expiring cache.
//   - Descriptions (descriptor.go): render Results as text lines such as
//     "temperature is hot (0.85)" for oracle prompts and operator display.
//
// # Quick Start
//
//	cfg := fuzzy.Config{SensorTypes: []fuzzy.SensorTypeConfig{{
//		SensorType:          "temperature",
//		Unit:                "celsius",
//		Universe:            fuzzy.Universe{Min: -20, Max: 60},
//		ConfidenceThreshold: 0.2,
//		Variables: []fuzzy.LinguisticVariable{
//			{Term: "cold", Function: fuzzy.ShapeTrapezoidal, Parameters: []float64{-20, -20, 5, 15}},
//			{Term: "comfortable", Function: fuzzy.ShapeTriangular, Parameters: []float64{10, 21, 28}},
//			{Term: "hot", Function: fuzzy.ShapeTriangular, Parameters: []float64{15, 35, 55}},
//		},
//	}}}
//
//	engine, err := fuzzy.NewEngine(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	result, err := engine.Fuzzify("temperature", 32.0)
//	// result.Terms: [{hot 0.85}]
//
//	desc := fuzzy.Describe("sensor-livingroom-1", result)
//	// desc.Text: "temperature is hot (0.85)"
//
// # Caching
//
// Sensor fleets repeat values constantly, so the engine caches Results in a
// pkg/cache hybrid cache keyed by "sensorType:value". A cache hit returns
// the stored Result bit for bit, timestamp included. Recomputations()
// counts computed (non-cached) fuzzifications; tests use it to prove cache
// behavior without poking at cache internals.
//
// # Hot Reload
//
// ReplaceConfig compiles the new configuration, swaps it in atomically, and
// clears the cache. Calls already past the snapshot load finish against the
// configuration they started with; there is never a partially updated view.
// A configuration that fails to compile leaves the running engine exactly
// as it was.
//
// # Invariants
//
// Degrees are always in [0,1]. Terms below the sensor type's confidence
// threshold never appear in a Result. Equal-degree terms keep their
// configuration order.
package fuzzy
