package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStage simulates a pipeline stage that registers its own metrics
type MockStage struct {
	name    string
	metrics struct {
		readingsProcessed prometheus.Counter
		cacheEntries      prometheus.Gauge
	}
}

func NewMockStage(name string) *MockStage {
	return &MockStage{name: name}
}

func (m *MockStage) Name() string {
	return m.name
}

// RegisterMetrics registers stage-specific metrics for the mock stage
func (m *MockStage) RegisterMetrics(registrar MetricsRegistrar) error {
	// Register a custom counter
	m.metrics.readingsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sembridge",
		Subsystem: "mock_stage",
		Name:      "readings_processed_total",
		Help:      "Total number of sensor readings processed",
	})

	err := registrar.RegisterCounter(m.name, "readings_processed_total", m.metrics.readingsProcessed)
	if err != nil {
		return err
	}

	// Register a custom gauge
	m.metrics.cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sembridge",
		Subsystem: "mock_stage",
		Name:      "cache_entries",
		Help:      "Current number of memoized results",
	})

	return registrar.RegisterGauge(m.name, "cache_entries", m.metrics.cacheEntries)
}

// ProcessReadings simulates stage activity and updates metrics
func (m *MockStage) ProcessReadings(readings int, cacheEntries int) {
	m.metrics.readingsProcessed.Add(float64(readings))
	m.metrics.cacheEntries.Set(float64(cacheEntries))
}

func TestMetricsIntegration_StageRegistration(t *testing.T) {
	// Create a new metrics registry
	registry := NewMetricsRegistry()

	// Create mock stage
	mockStage := NewMockStage("test-stage")

	// Register the stage's metrics
	err := mockStage.RegisterMetrics(registry)
	require.NoError(t, err)

	// Simulate some stage activity
	mockStage.ProcessReadings(10, 5)

	// Verify metrics are registered and have values
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundMetrics := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundMetrics[mf.GetName()] = true
	}

	// Verify custom metrics are registered
	assert.True(t, foundMetrics["sembridge_mock_stage_readings_processed_total"],
		"Custom readings_processed metric should be registered")
	assert.True(t, foundMetrics["sembridge_mock_stage_cache_entries"],
		"Custom cache_entries metric should be registered")
}

func TestMetricsIntegration_NoDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	// Create two stages with the same name (this shouldn't happen in real usage)
	stage1 := NewMockStage("duplicate-stage")
	stage2 := NewMockStage("duplicate-stage")

	// Register first stage's metrics
	err := stage1.RegisterMetrics(registry)
	require.NoError(t, err)

	// Try to register second stage's metrics - should fail
	err = stage2.RegisterMetrics(registry)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestMetricsIntegration_CoreAndStageMetricsSeparate(t *testing.T) {
	registry := NewMetricsRegistry()
	coreMetrics := registry.CoreMetrics()

	mockStage := NewMockStage("separation-test")
	err := mockStage.RegisterMetrics(registry)
	require.NoError(t, err)

	// Use core metrics
	coreMetrics.RecordServiceStatus("separation-test", 2)
	coreMetrics.RecordMessageReceived("separation-test", "sensor_reading")

	// Use stage-specific metrics
	mockStage.ProcessReadings(5, 3)

	// Verify both types of metrics are present
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundMetrics := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundMetrics[mf.GetName()] = true
	}

	// Verify core metrics
	assert.True(t, foundMetrics["sembridge_service_status"],
		"core service status metric should be present")
	assert.True(t, foundMetrics["sembridge_messages_received_total"],
		"core messages received metric should be present")

	// Verify stage-specific metrics
	assert.True(t, foundMetrics["sembridge_mock_stage_readings_processed_total"],
		"Stage-specific readings processed metric should be present")
	assert.True(t, foundMetrics["sembridge_mock_stage_cache_entries"],
		"Stage-specific cache entries metric should be present")

	// Verify pipeline metrics are NOT present (they are registered by specific stages only)
	assert.False(t, foundMetrics["sembridge_pipeline_cycles_total"],
		"Pipeline cycle metric should NOT be in core registry")
	assert.False(t, foundMetrics["sembridge_oracle_consultations_total"],
		"Oracle consultation metric should NOT be in core registry")
}

func TestMetricsIntegration_MetricsUnregistration(t *testing.T) {
	registry := NewMetricsRegistry()

	mockStage := NewMockStage("unregister-test")

	// Register metrics
	err := mockStage.RegisterMetrics(registry)
	require.NoError(t, err)

	// Process some data to make metrics visible
	mockStage.ProcessReadings(1, 1)

	// Verify metrics are present
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundBefore := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundBefore[mf.GetName()] = true
	}

	assert.True(t, foundBefore["sembridge_mock_stage_readings_processed_total"],
		"Metric should be present before unregistration")

	// Unregister one of the metrics
	success := registry.Unregister("unregister-test", "readings_processed_total")
	assert.True(t, success, "Unregistration should succeed")

	// Verify metric is no longer present
	metricFamilies, err = registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	foundAfter := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundAfter[mf.GetName()] = true
	}

	assert.False(t, foundAfter["sembridge_mock_stage_readings_processed_total"],
		"Metric should be absent after unregistration")
	assert.True(t, foundAfter["sembridge_mock_stage_cache_entries"],
		"Other stage metrics should remain")
}

func TestMetricsIntegration_MultipleStagesWithUniqueMetrics(t *testing.T) {
	registry := NewMetricsRegistry()

	// Create multiple stages - they need different metric names to coexist
	stage1 := NewMockStage("fuzzy-engine")
	stage2 := NewMockStage("rule-selector")

	// Register first stage
	err := stage1.RegisterMetrics(registry)
	require.NoError(t, err)

	// The second stage will fail because it tries to register the same Prometheus metric names
	// This demonstrates that our registry correctly prevents Prometheus-level conflicts
	err = stage2.RegisterMetrics(registry)
	assert.Error(t, err, "Second stage should fail due to Prometheus metric name conflict")
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsIntegration_MultipleStagesSameNames(t *testing.T) {
	registry := NewMetricsRegistry()

	// Create stages with identical names - this simulates trying to register
	// the same stage twice, which should be prevented
	stage1 := NewMockStage("identical-stage")
	stage2 := NewMockStage("identical-stage")

	// Register first stage
	err := stage1.RegisterMetrics(registry)
	require.NoError(t, err)

	// Second stage with same name should fail at our registry level
	err = stage2.RegisterMetrics(registry)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}
