// Package cache provides a high-performance, thread-safe generic cache with
// combined LRU and TTL eviction, built-in statistics tracking, and optional
// Prometheus metrics integration.
//
// # Overview
//
// Entries are evicted when the cache reaches its maximum size (least recently
// used first) or when they expire, whichever comes first. That combination fits
// every caching need in this system: fuzzification results repeat heavily
// within a sensing window but must not survive a configuration change window,
// and oracle model listings are cheap to refresh but expensive to fetch on
// every health probe.
//
// The implementation is generic, thread-safe, and provides comprehensive
// observability through always-on statistics and optional metrics.
//
// # Quick Start
//
//	cache, err := cache.NewFromConfig[fuzzy.Result](ctx, cache.Config{
//		Enabled:         true,
//		MaxSize:         5000,
//		TTL:             10 * time.Minute,
//		CleanupInterval: 1 * time.Minute,
//	},
//		cache.WithMetrics[fuzzy.Result](registry, "fuzzifier"),
//	)
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	cache.Set("temperature:23.5", result)
//	value, ok := cache.Get("temperature:23.5")
//
// Disabling the cache in configuration yields a no-op implementation that
// always misses, so callers never branch on whether caching is on:
//
//	cache, _ := cache.NewFromConfig[V](ctx, cache.Config{Enabled: false})
//
// # Observability Architecture
//
// The cache package implements a dual-tracking pattern for comprehensive observability:
//
// Statistics (Always On):
//   - Tracks all operations using atomic counters
//   - Zero configuration required
//   - Available via cache.Stats()
//   - Provides computed metrics (hit ratio, requests/sec)
//   - No external dependencies
//
// Prometheus Metrics (Optional):
//   - Enabled via WithMetrics() option
//   - Exports to Prometheus for time-series monitoring
//   - Includes component labels for instance identification
//   - Standard metric types (Counter, Gauge)
//
// # Design Decision: Dual Tracking Pattern
//
// Both Statistics and Metrics track operations independently, which appears redundant
// but serves distinct operational purposes:
//
// 1. Independence: Statistics work without Prometheus dependency
//   - Always available for debugging, even in minimal deployments
//   - No external infrastructure required for basic observability
//   - Critical for tests and local development
//
// 2. Computed Metrics: Statistics provide derived values not available in raw Prometheus
//   - Hit ratio (hits / total requests)
//   - Requests per second with built-in timing
//   - Miss ratio (misses / total requests)
//
// 3. Different Use Cases:
//   - Statistics: Programmatic access, debugging, tests, runtime inspection
//   - Metrics: Time-series analysis, Grafana dashboards, alerting, production monitoring
//
// Reading Statistics back out of Prometheus counters was considered and
// rejected: it creates a Prometheus dependency for basic stats, is an order of
// magnitude slower than atomic loads, and breaks Statistics when metrics are
// disabled.
//
// # Functional Options Pattern
//
// The package uses functional options for clean, composable configuration:
//
//	cache, err := cache.NewFromConfig[V](ctx, cfg,
//		cache.WithMetrics[V](registry, "component"),
//		cache.WithEvictionCallback[V](callback),
//	)
//
// Available options:
//   - WithMetrics: Enable Prometheus metrics export
//   - WithEvictionCallback: Get notified when items are evicted
//   - WithStatsInterval: Set stats aggregation interval
//
// # Thread Safety
//
// All cache operations are thread-safe for concurrent use:
//   - Multiple goroutines can read concurrently (RWMutex for reads)
//   - Writes are serialized with mutex protection
//   - Statistics use atomic operations (lock-free)
//   - Metrics use Prometheus atomic types
//   - TTL cleanup runs in a background goroutine
//
// Eviction callbacks from inline LRU eviction run while the cache lock is
// held and must not call back into the cache. Callbacks from the background
// expiry sweep run outside the lock.
//
// # Performance Characteristics
//
//   - Get: O(1) map lookup + list move + expiry check
//   - Set: O(1) map insert + list append/evict
//   - Delete: O(1) map delete + list remove
//   - Cleanup: O(n) periodic scan (background)
//   - Memory: O(n) map + list + expiry tracking
//
// # Context and Cleanup
//
// The cache runs a background cleanup goroutine. Always pass a context that
// will be canceled when cleanup should stop, and call Close() on shutdown:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	cache, _ := cache.NewFromConfig[V](ctx, cfg)
//	defer cache.Close()
//
// # Testing
//
// The package includes comprehensive tests with race detection:
//
//	go test -race ./pkg/cache
//
// Statistics make testing cache behavior easy:
//
//	cache.Set("key", 42)
//	_, _ = cache.Get("key")
//	_, _ = cache.Get("missing")
//
//	assert.Equal(t, int64(1), cache.Stats().Hits())
//	assert.Equal(t, int64(1), cache.Stats().Misses())
//	assert.Equal(t, 0.5, cache.Stats().HitRatio())
package cache
