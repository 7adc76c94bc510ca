package fuzzy

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/pkg/cache"
)

func testEngineConfig() Config {
	return Config{SensorTypes: []SensorTypeConfig{
		{
			SensorType:          "temperature",
			Unit:                "celsius",
			Universe:            Universe{Min: -20, Max: 60},
			ConfidenceThreshold: 0.2,
			Variables: []LinguisticVariable{
				{Term: "cold", Function: ShapeTrapezoidal, Parameters: []float64{-20, -20, 5, 15}},
				{Term: "comfortable", Function: ShapeTriangular, Parameters: []float64{10, 21, 28}},
				{Term: "hot", Function: ShapeTriangular, Parameters: []float64{15, 35, 55}},
			},
		},
		{
			// Two terms with identical shapes so ties are exercised.
			SensorType:          "vibration",
			Unit:                "mm/s",
			Universe:            Universe{Min: 0, Max: 10},
			ConfidenceThreshold: 0.1,
			Variables: []LinguisticVariable{
				{Term: "low", Function: ShapeTriangular, Parameters: []float64{0, 5, 10}},
				{Term: "rumble", Function: ShapeTriangular, Parameters: []float64{0, 5, 10}},
			},
		},
	}}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), testEngineConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty sensor type name", func(c *Config) { c.SensorTypes[0].SensorType = "" }},
		{"duplicate sensor type", func(c *Config) { c.SensorTypes[1].SensorType = "temperature" }},
		{"inverted universe", func(c *Config) { c.SensorTypes[0].Universe = Universe{Min: 60, Max: -20} }},
		{"threshold above one", func(c *Config) { c.SensorTypes[0].ConfidenceThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.SensorTypes[0].ConfidenceThreshold = -0.1 }},
		{"no variables", func(c *Config) { c.SensorTypes[0].Variables = nil }},
		{"empty term", func(c *Config) { c.SensorTypes[0].Variables[0].Term = "" }},
		{"duplicate term", func(c *Config) { c.SensorTypes[0].Variables[1].Term = "cold" }},
		{"bad parameters", func(c *Config) { c.SensorTypes[0].Variables[2].Parameters = []float64{55, 35, 15} }},
		{"unknown shape", func(c *Config) { c.SensorTypes[0].Variables[2].Function = "parabolic" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testEngineConfig()
			tt.mutate(&cfg)

			_, err := NewEngine(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "config errors are invalid-class: %v", err)

			assert.Error(t, cfg.Validate(), "Validate reports the same problem")
		})
	}
}

func TestEngine_Fuzzify(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)

	assert.Equal(t, "temperature", result.SensorType)
	assert.Equal(t, 32.0, result.RawValue)
	assert.False(t, result.Timestamp.IsZero())
	require.Len(t, result.Terms, 1)
	assert.Equal(t, "hot", result.Terms[0].Term)
	assert.InDelta(t, 0.85, result.Terms[0].Degree, 1e-9)
}

func TestEngine_Fuzzify_SortedDescending(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Fuzzify("temperature", 20.0)
	require.NoError(t, err)

	require.Len(t, result.Terms, 2)
	assert.Equal(t, "comfortable", result.Terms[0].Term)
	assert.InDelta(t, 10.0/11.0, result.Terms[0].Degree, 1e-9)
	assert.Equal(t, "hot", result.Terms[1].Term)
	assert.InDelta(t, 0.25, result.Terms[1].Degree, 1e-9)
}

func TestEngine_Fuzzify_ThresholdFiltering(t *testing.T) {
	e := newTestEngine(t)

	// At 18.0 the "hot" degree is 0.15, under the 0.2 threshold.
	result, err := e.Fuzzify("temperature", 18.0)
	require.NoError(t, err)
	require.Len(t, result.Terms, 1)
	assert.Equal(t, "comfortable", result.Terms[0].Term)

	// No value may ever produce a sub-threshold term.
	for x := -20.0; x <= 60.0; x += 0.25 {
		r, err := e.Fuzzify("temperature", x)
		require.NoError(t, err)
		for _, td := range r.Terms {
			assert.GreaterOrEqual(t, td.Degree, 0.2, "value %g term %s", x, td.Term)
			assert.LessOrEqual(t, td.Degree, 1.0, "value %g term %s", x, td.Term)
		}
	}
}

func TestEngine_Fuzzify_TieKeepsConfigOrder(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Fuzzify("vibration", 2.5)
	require.NoError(t, err)

	require.Len(t, result.Terms, 2)
	assert.Equal(t, result.Terms[0].Degree, result.Terms[1].Degree)
	assert.Equal(t, "low", result.Terms[0].Term, "equal degrees keep configuration order")
	assert.Equal(t, "rumble", result.Terms[1].Term)
}

func TestEngine_Fuzzify_UnknownSensorType(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Fuzzify("pressure", 1013.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownSensorType)
	assert.True(t, errors.IsInvalid(err))
}

func TestEngine_CacheServesRepeats(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)
	second, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)

	assert.Equal(t, int64(1), e.Recomputations(), "second call must come from cache")
	assert.Equal(t, first, second, "cached result is returned unchanged, timestamp included")

	// A different value is a different cache key.
	_, err = e.Fuzzify("temperature", 32.5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Recomputations())
}

func TestEngine_CacheDisabled(t *testing.T) {
	e := newTestEngine(t, WithCacheConfig(cache.Config{Enabled: false}))

	_, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)
	_, err = e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)

	assert.Equal(t, int64(2), e.Recomputations(), "disabled cache recomputes every call")
}

func TestEngine_FuzzifyBatch(t *testing.T) {
	e := newTestEngine(t)

	results := e.FuzzifyBatch([]BatchItem{
		{SensorType: "temperature", Value: 32.0},
		{SensorType: "pressure", Value: 1013.0},
		{SensorType: "vibration", Value: 2.5},
	})

	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "hot", results[0].Result.Terms[0].Term)

	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, errors.ErrUnknownSensorType)

	require.NoError(t, results[2].Err)
	assert.Equal(t, "vibration", results[2].Result.SensorType)
}

func TestEngine_ReplaceConfig(t *testing.T) {
	e := newTestEngine(t)

	// Warm the cache, then replace with a stricter threshold.
	before, err := e.Fuzzify("temperature", 20.0)
	require.NoError(t, err)
	require.Len(t, before.Terms, 2)
	computed := e.Recomputations()

	cfg := testEngineConfig()
	cfg.SensorTypes[0].ConfidenceThreshold = 0.5
	cfg.SensorTypes = cfg.SensorTypes[:1]
	require.NoError(t, e.ReplaceConfig(cfg))

	after, err := e.Fuzzify("temperature", 20.0)
	require.NoError(t, err)
	require.Len(t, after.Terms, 1, "hot (0.25) falls under the new 0.5 threshold")
	assert.Equal(t, "comfortable", after.Terms[0].Term)
	assert.Greater(t, e.Recomputations(), computed, "cache is cleared on replace")

	_, err = e.Fuzzify("vibration", 2.5)
	assert.ErrorIs(t, err, errors.ErrUnknownSensorType, "removed sensor types are gone")
}

func TestEngine_ReplaceConfig_InvalidKeepsOld(t *testing.T) {
	e := newTestEngine(t)

	bad := testEngineConfig()
	bad.SensorTypes[0].Variables[0].Parameters = []float64{15, 5, -20}
	require.Error(t, e.ReplaceConfig(bad))

	// Old configuration still answers.
	result, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)
	assert.Equal(t, "hot", result.Terms[0].Term)
}

func TestEngine_SensorTypes(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"temperature", "vibration"}, e.SensorTypes())
}

func TestEngine_Strongest(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)

	strongest, ok := result.Strongest()
	require.True(t, ok)
	assert.Equal(t, "hot", strongest.Term)

	_, ok = Result{}.Strongest()
	assert.False(t, ok)
}

func TestEngine_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	e := newTestEngine(t, WithMetricsRegistry(registry))

	_, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)
	_, err = e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[*mf.Name] = mf
	}

	fuzzifications := byName["sembridge_fuzzy_fuzzifications_total"]
	require.NotNil(t, fuzzifications)
	assert.Equal(t, float64(2), *fuzzifications.Metric[0].Counter.Value)

	recomputations := byName["sembridge_fuzzy_recomputations_total"]
	require.NotNil(t, recomputations)
	assert.Equal(t, float64(1), *recomputations.Metric[0].Counter.Value)

	// The result cache registers its own metrics under the fuzzifier prefix.
	assert.NotNil(t, byName["sembridge_cache_hits_total"])
}

func TestEngine_CacheStats(t *testing.T) {
	e := newTestEngine(t)

	_, _ = e.Fuzzify("temperature", 32.0)
	_, _ = e.Fuzzify("temperature", 32.0)

	stats := e.CacheStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
}

func TestEngine_CacheTTLExpiry(t *testing.T) {
	e := newTestEngine(t, WithCacheConfig(cache.Config{
		Enabled:         true,
		MaxSize:         10,
		TTL:             30 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	}))

	_, err := e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = e.Fuzzify("temperature", 32.0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Recomputations(), "expired entries are recomputed")
}
