package fuzzy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/pkg/cache"
)

// TermDegree is one linguistic term with its membership degree.
type TermDegree struct {
	Term   string  `json:"term"`
	Degree float64 `json:"degree"`
}

// Result is the fuzzification of one sensor value: the terms at or above
// the sensor type's confidence threshold, sorted by descending degree.
// Results are immutable once produced; later calls supersede, never mutate.
type Result struct {
	SensorType string       `json:"sensor_type"`
	RawValue   float64      `json:"raw_value"`
	Terms      []TermDegree `json:"terms"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Strongest returns the dominant term. Terms are sorted by descending
// degree, so this is the first entry; false when no term cleared the
// threshold.
func (r Result) Strongest() (TermDegree, bool) {
	if len(r.Terms) == 0 {
		return TermDegree{}, false
	}
	return r.Terms[0], true
}

// Engine fuzzifies sensor values against a compiled membership
// configuration. Repeated identical readings are served from a bounded
// expiring cache. The configuration can be replaced at runtime; in-flight
// calls finish against the snapshot they started with.
type Engine struct {
	snapshot atomic.Pointer[snapshot]
	cache    cache.Cache[Result]
	logger   *slog.Logger

	recomputations atomic.Int64

	metrics *engineMetrics
}

type engineMetrics struct {
	fuzzifications prometheus.Counter
	recomputations prometheus.Counter
	configReloads  prometheus.Counter
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cacheConfig cache.Config
	registry    *metric.MetricsRegistry
	logger      *slog.Logger
}

// WithCacheConfig overrides the result cache configuration. Disabling the
// cache makes every Fuzzify recompute.
func WithCacheConfig(cfg cache.Config) Option {
	return func(o *engineOptions) {
		o.cacheConfig = cfg
	}
}

// WithMetricsRegistry enables Prometheus metrics for the engine and its
// result cache.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *engineOptions) {
		o.registry = registry
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine compiles cfg and builds the engine. Configuration problems are
// invalid-class errors; callers treat them as fatal at load time. The
// context bounds the lifetime of the cache's background cleanup.
func NewEngine(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	snap, err := compileConfig(cfg)
	if err != nil {
		return nil, err
	}

	o := engineOptions{
		cacheConfig: cache.Config{
			Enabled:         true,
			MaxSize:         5000,
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		logger: slog.Default().With("component", "fuzzy"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var cacheOpts []cache.Option[Result]
	if o.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[Result](o.registry, "fuzzifier"))
	}
	resultCache, err := cache.NewFromConfig[Result](ctx, o.cacheConfig, cacheOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "fuzzy.Engine", "NewEngine", "result cache construction")
	}

	e := &Engine{
		cache:  resultCache,
		logger: o.logger,
	}
	e.snapshot.Store(snap)
	if o.registry != nil {
		e.initializeMetrics(o.registry)
	}
	return e, nil
}

func (e *Engine) initializeMetrics(registry *metric.MetricsRegistry) {
	labels := prometheus.Labels{"component": "fuzzy"}

	fuzzifications := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "sembridge",
		Subsystem:   "fuzzy",
		Name:        "fuzzifications_total",
		ConstLabels: labels,
		Help:        "Total fuzzification calls served, cached or computed",
	})
	recomputations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "sembridge",
		Subsystem:   "fuzzy",
		Name:        "recomputations_total",
		ConstLabels: labels,
		Help:        "Total fuzzifications computed from membership functions",
	})
	configReloads := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "sembridge",
		Subsystem:   "fuzzy",
		Name:        "config_reloads_total",
		ConstLabels: labels,
		Help:        "Total membership configuration replacements",
	})

	serviceName := "fuzzy"
	if err := registry.RegisterCounter(serviceName, "fuzzifications_total", fuzzifications); err != nil {
		return
	}
	if err := registry.RegisterCounter(serviceName, "recomputations_total", recomputations); err != nil {
		return
	}
	if err := registry.RegisterCounter(serviceName, "config_reloads_total", configReloads); err != nil {
		return
	}

	e.metrics = &engineMetrics{
		fuzzifications: fuzzifications,
		recomputations: recomputations,
		configReloads:  configReloads,
	}
}

// Fuzzify evaluates every linguistic variable of sensorType against value,
// drops terms under the confidence threshold, and returns the remainder
// sorted by descending degree. Unknown sensor types are configuration
// errors. Identical (sensorType, value) pairs within the cache TTL return
// the cached Result unchanged.
func (e *Engine) Fuzzify(sensorType string, value float64) (Result, error) {
	snap := e.snapshot.Load()
	sensor, ok := snap.sensors[sensorType]
	if !ok {
		return Result{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownSensorType, sensorType),
			"fuzzy.Engine", "Fuzzify", "sensor type lookup")
	}
	if e.metrics != nil {
		e.metrics.fuzzifications.Inc()
	}

	key := cacheKey(sensorType, value)
	if cached, hit := e.cache.Get(key); hit {
		return cached, nil
	}

	result := e.compute(sensorType, sensor, value)
	if _, err := e.cache.Set(key, result); err != nil {
		// A failed cache write only costs a future recomputation.
		e.logger.Warn("fuzzification cache write failed",
			"sensor_type", sensorType, "error", err)
	}
	return result, nil
}

func (e *Engine) compute(sensorType string, sensor *compiledSensor, value float64) Result {
	e.recomputations.Add(1)
	if e.metrics != nil {
		e.metrics.recomputations.Inc()
	}

	terms := make([]TermDegree, 0, len(sensor.terms))
	for _, t := range sensor.terms {
		degree := clamp01(t.fn(value))
		if degree < sensor.threshold {
			continue
		}
		terms = append(terms, TermDegree{Term: t.term, Degree: degree})
	}
	// Stable, so equal degrees keep configuration order.
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Degree > terms[j].Degree
	})

	return Result{
		SensorType: sensorType,
		RawValue:   value,
		Terms:      terms,
		Timestamp:  time.Now(),
	}
}

// BatchItem is one (sensor type, value) pair for FuzzifyBatch.
type BatchItem struct {
	SensorType string
	Value      float64
}

// BatchResult carries the outcome for one batch item. Err is set when that
// item failed; other items are unaffected.
type BatchResult struct {
	Item   BatchItem
	Result Result
	Err    error
}

// FuzzifyBatch fuzzifies each item independently. Failures are reported per
// entry and never abort the batch.
func (e *Engine) FuzzifyBatch(items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))
	for i, item := range items {
		r, err := e.Fuzzify(item.SensorType, item.Value)
		results[i] = BatchResult{Item: item, Result: r, Err: err}
	}
	return results
}

// ReplaceConfig atomically swaps the membership configuration and clears
// the result cache. In-flight Fuzzify calls complete against the old
// snapshot. On compilation error the active configuration is untouched.
func (e *Engine) ReplaceConfig(cfg Config) error {
	snap, err := compileConfig(cfg)
	if err != nil {
		return err
	}
	e.snapshot.Store(snap)
	if err := e.cache.Clear(); err != nil {
		e.logger.Warn("fuzzification cache clear failed after config replace", "error", err)
	}
	if e.metrics != nil {
		e.metrics.configReloads.Inc()
	}
	e.logger.Info("membership configuration replaced", "sensor_types", len(snap.sensors))
	return nil
}

// Recomputations returns how many fuzzifications were computed rather than
// served from cache.
func (e *Engine) Recomputations() int64 {
	return e.recomputations.Load()
}

// SensorTypes returns the configured sensor type names, sorted.
func (e *Engine) SensorTypes() []string {
	snap := e.snapshot.Load()
	names := make([]string, 0, len(snap.sensors))
	for name := range snap.sensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CacheStats exposes the result cache statistics.
func (e *Engine) CacheStats() *cache.Statistics {
	return e.cache.Stats()
}

// Close releases the result cache.
func (e *Engine) Close() error {
	return e.cache.Close()
}

func cacheKey(sensorType string, value float64) string {
	return sensorType + ":" + strconv.FormatFloat(value, 'f', -1, 64)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
