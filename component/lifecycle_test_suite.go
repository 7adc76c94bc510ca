package component

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LifecycleFactory creates a fresh component instance for a lifecycle test.
// Each invocation must return an independent instance; the suite creates
// many of them.
type LifecycleFactory func() LifecycleComponent

// StandardLifecycleTests runs the shared lifecycle contract against any
// LifecycleComponent. Every long-running component in the pipeline (the
// evaluation coordinator, the broker-facing inputs and outputs) should pass
// this suite so that startup ordering and shutdown behave the same way
// everywhere.
func StandardLifecycleTests(t *testing.T, factory LifecycleFactory) {
	t.Run("Compliance", func(t *testing.T) {
		testLifecycleCompliance(t, factory)
	})
	t.Run("ErrorPaths", func(t *testing.T) {
		testErrorPaths(t, factory)
	})
	t.Run("Concurrent", func(t *testing.T) {
		testConcurrentLifecycle(t, factory)
	})
	t.Run("NoLeaks", func(t *testing.T) {
		testNoResourceLeaks(t, factory)
	})
}

// testLifecycleCompliance exercises the state transitions every component
// must support: the happy path, repeated calls, and restart after stop.
func testLifecycleCompliance(t *testing.T, factory LifecycleFactory) {
	startCtx := func(t *testing.T) context.Context {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		t.Cleanup(cancel)
		return ctx
	}

	tests := []struct {
		name string
		test func(t *testing.T, comp LifecycleComponent)
	}{
		{"Initialize", func(t *testing.T, comp LifecycleComponent) {
			assert.NoError(t, comp.Initialize(), "Initialize should succeed on a fresh component")
		}},
		{"StartAfterInitialize", func(t *testing.T, comp LifecycleComponent) {
			require.NoError(t, comp.Initialize())
			assert.NoError(t, comp.Start(startCtx(t)), "Start should succeed after Initialize")
			assert.NoError(t, comp.Stop(5*time.Second), "Stop should succeed after Start")
		}},
		{"StopWithoutStart", func(t *testing.T, comp LifecycleComponent) {
			assert.NoError(t, comp.Stop(5*time.Second), "Stop should be safe without Start")
		}},
		{"DoubleStart", func(t *testing.T, comp LifecycleComponent) {
			require.NoError(t, comp.Initialize())
			ctx := startCtx(t)
			require.NoError(t, comp.Start(ctx), "first Start should succeed")
			// A second Start may no-op or error, but must not wedge the component.
			_ = comp.Start(ctx)
			assert.NoError(t, comp.Stop(5*time.Second))
		}},
		{"DoubleStop", func(t *testing.T, comp LifecycleComponent) {
			require.NoError(t, comp.Initialize())
			require.NoError(t, comp.Start(startCtx(t)))
			assert.NoError(t, comp.Stop(5*time.Second), "first Stop should succeed")
			assert.NoError(t, comp.Stop(5*time.Second), "second Stop should be idempotent")
		}},
		{"StartWithoutInit", func(t *testing.T, comp LifecycleComponent) {
			err := comp.Start(startCtx(t))
			// Allowed to succeed (implicit initialize) or to refuse clearly.
			if err != nil {
				assert.Contains(t, err.Error(), "not initialized")
			}
			_ = comp.Stop(5 * time.Second)
		}},
		{"InitializeAfterStop", func(t *testing.T, comp LifecycleComponent) {
			require.NoError(t, comp.Initialize())
			require.NoError(t, comp.Start(startCtx(t)))
			require.NoError(t, comp.Stop(5*time.Second))
			assert.NoError(t, comp.Initialize(), "Initialize should succeed after Stop")
		}},
		{"RestartAfterStop", func(t *testing.T, comp LifecycleComponent) {
			require.NoError(t, comp.Initialize())
			require.NoError(t, comp.Start(startCtx(t)))
			require.NoError(t, comp.Stop(5*time.Second))

			// A component may demand re-initialization before restarting, but
			// the init+start path must then work.
			if err := comp.Start(startCtx(t)); err != nil {
				require.NoError(t, comp.Initialize(), "re-Initialize should succeed when restart is refused")
				assert.NoError(t, comp.Start(startCtx(t)), "Start should succeed after re-Initialize")
			}
			assert.NoError(t, comp.Stop(5*time.Second))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := factory()
			require.NotNil(t, comp, "component factory returned nil")
			tt.test(t, comp)
		})
	}
}

// testErrorPaths verifies components fail cleanly and stay stoppable when
// Start is handed a context that is already finished.
func testErrorPaths(t *testing.T, factory LifecycleFactory) {
	tests := []struct {
		name      string
		setup     func(LifecycleComponent) error
		operation func(LifecycleComponent) error
		wantErr   bool
		errCheck  func(error) bool
	}{
		{
			name:  "cancelled_context_on_start",
			setup: func(comp LifecycleComponent) error { return comp.Initialize() },
			operation: func(comp LifecycleComponent) error {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return comp.Start(ctx)
			},
			wantErr: true,
			errCheck: func(err error) bool {
				return strings.Contains(err.Error(), "context") || strings.Contains(err.Error(), "cancel")
			},
		},
		{
			name:  "expired_context_on_start",
			setup: func(comp LifecycleComponent) error { return comp.Initialize() },
			operation: func(comp LifecycleComponent) error {
				ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
				defer cancel()
				time.Sleep(10 * time.Millisecond)
				return comp.Start(ctx)
			},
			wantErr: true,
			errCheck: func(err error) bool {
				return strings.Contains(err.Error(), "context") || strings.Contains(err.Error(), "deadline")
			},
		},
		{
			name:      "start_without_initialize",
			setup:     func(_ LifecycleComponent) error { return nil },
			operation: func(comp LifecycleComponent) error { return comp.Start(context.Background()) },
			wantErr:   false,
			errCheck:  func(err error) bool { return err == nil || strings.Contains(err.Error(), "not initialized") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := factory()
			require.NotNil(t, comp, "component factory returned nil")
			require.NoError(t, tt.setup(comp), "test setup failed")

			err := tt.operation(comp)
			if tt.wantErr {
				assert.Error(t, err, "operation should have failed")
			}
			if err != nil && tt.errCheck != nil {
				assert.True(t, tt.errCheck(err), "unexpected error shape: %v", err)
			}

			// Whatever happened, the component must still stop cleanly.
			assert.NoError(t, comp.Stop(5*time.Second), "component should be stoppable after error path")
		})
	}
}

// testConcurrentLifecycle hammers the lifecycle methods from many goroutines.
func testConcurrentLifecycle(t *testing.T, factory LifecycleFactory) {
	t.Run("ConcurrentStartStop", func(t *testing.T) {
		testConcurrentStartStop(t, factory)
	})
	t.Run("ConcurrentInitialize", func(t *testing.T) {
		testConcurrentInitialize(t, factory)
	})
	t.Run("StressTest", func(t *testing.T) {
		testLifecycleStress(t, factory)
	})
}

func testConcurrentStartStop(t *testing.T, factory LifecycleFactory) {
	comp := factory()
	require.NotNil(t, comp, "component factory returned nil")
	require.NoError(t, comp.Initialize())

	const half = 50
	var wg sync.WaitGroup
	results := make([]error, 2*half)

	for i := 0; i < half; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results[idx] = comp.Start(ctx)
		}(i)
	}
	for i := half; i < 2*half; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond) // let some starts land first
			results[idx] = comp.Stop(5 * time.Second)
		}(i)
	}
	wg.Wait()

	startOK, stopOK := 0, 0
	for i, err := range results {
		if err != nil {
			continue
		}
		if i < half {
			startOK++
		} else {
			stopOK++
		}
	}
	assert.GreaterOrEqual(t, startOK, 1, "at least one Start should succeed")
	assert.GreaterOrEqual(t, stopOK, 1, "at least one Stop should succeed")

	_ = comp.Stop(5 * time.Second)
}

func testConcurrentInitialize(t *testing.T, factory LifecycleFactory) {
	comp := factory()
	require.NotNil(t, comp, "component factory returned nil")

	const callers = 20
	var wg sync.WaitGroup
	results := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = comp.Initialize()
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.GreaterOrEqual(t, succeeded, 1, "at least one Initialize should succeed")

	assert.NoError(t, comp.Stop(5*time.Second), "component should be stoppable after concurrent Initialize")
}

func testLifecycleStress(t *testing.T, factory LifecycleFactory) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const iterations = 50
	const concurrency = 10

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				comp := factory()
				require.NotNil(t, comp, "component factory returned nil")

				switch j % 4 {
				case 0:
					_ = comp.Initialize()
					ctx, cancel := context.WithTimeout(context.Background(), time.Second)
					_ = comp.Start(ctx)
					cancel()
					_ = comp.Stop(5 * time.Second)
				case 1:
					_ = comp.Initialize()
					_ = comp.Stop(5 * time.Second)
				case 2:
					ctx, cancel := context.WithTimeout(context.Background(), time.Second)
					_ = comp.Start(ctx)
					cancel()
					_ = comp.Stop(5 * time.Second)
				case 3:
					_ = comp.Stop(5 * time.Second)
				}
			}
		}()
	}
	wg.Wait()

	t.Logf("Stress test completed: %d workers x %d iterations = %d total operations",
		concurrency, iterations, concurrency*iterations)
}

// testNoResourceLeaks runs many full lifecycles and checks that goroutine and
// heap usage settle back near the baseline.
func testNoResourceLeaks(t *testing.T, factory LifecycleFactory) {
	if testing.Short() {
		t.Skip("Skipping resource leak test in short mode")
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	initialGoroutines := runtime.NumGoroutine()

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	const iterations = 500
	for i := 0; i < iterations; i++ {
		comp := factory()
		require.NotNil(t, comp, "component factory returned nil")

		if err := comp.Initialize(); err != nil {
			t.Logf("Initialize failed on iteration %d: %v", i, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if err := comp.Start(ctx); err != nil {
			t.Logf("Start failed on iteration %d: %v", i, err)
		}
		if err := comp.Stop(5 * time.Second); err != nil {
			t.Logf("Stop failed on iteration %d: %v", i, err)
		}
		cancel()

		if i%100 == 99 {
			runtime.GC()
			time.Sleep(10 * time.Millisecond)
		}
	}

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	finalGoroutines := runtime.NumGoroutine()

	growth := int64(after.Alloc) - int64(before.Alloc)
	if growth > 50*1024*1024 {
		t.Errorf("Memory grew by %d bytes (%.2f MB), expected < 50MB", growth, float64(growth)/(1024*1024))
	}

	goroutineGrowth := finalGoroutines - initialGoroutines
	if goroutineGrowth > 5 {
		t.Errorf("Goroutine count grew by %d (initial: %d, final: %d), expected growth < 5",
			goroutineGrowth, initialGoroutines, finalGoroutines)
	}

	t.Logf("Resource leak test completed: %d iterations, memory growth: %d bytes, goroutine growth: %d",
		iterations, growth, goroutineGrowth)
}

// BenchmarkLifecycleMethods benchmarks the individual lifecycle operations
// for a component. Call it from a package benchmark with the same factory
// used for StandardLifecycleTests.
func BenchmarkLifecycleMethods(b *testing.B, factory LifecycleFactory) {
	b.Run("Initialize", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			comp := factory()
			_ = comp.Initialize()
			_ = comp.Stop(5 * time.Second)
		}
	})

	b.Run("Start", func(b *testing.B) {
		comp := factory()
		_ = comp.Initialize()
		defer func() { _ = comp.Stop(5 * time.Second) }()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = comp.Start(ctx)
			cancel()
		}
	})

	b.Run("Stop", func(b *testing.B) {
		comp := factory()
		_ = comp.Initialize()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = comp.Start(ctx)
		cancel()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = comp.Stop(5 * time.Second)
		}
	})

	b.Run("FullLifecycle", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			comp := factory()
			_ = comp.Initialize()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = comp.Start(ctx)
			cancel()
			_ = comp.Stop(5 * time.Second)
		}
	})
}

// ErrorInjectingComponent wraps a component so tests can force lifecycle
// methods to fail on demand.
type ErrorInjectingComponent struct {
	LifecycleComponent
	injectInitError  bool
	injectStartError bool
	injectStopError  bool
	initError        error
	startError       error
	stopError        error
}

// NewErrorInjectingComponent wraps comp with error injection hooks.
func NewErrorInjectingComponent(comp LifecycleComponent) *ErrorInjectingComponent {
	return &ErrorInjectingComponent{LifecycleComponent: comp}
}

// InjectInitializeError makes Initialize return err instead of delegating.
func (e *ErrorInjectingComponent) InjectInitializeError(err error) {
	e.injectInitError = true
	e.initError = err
}

// InjectStartError makes Start return err instead of delegating.
func (e *ErrorInjectingComponent) InjectStartError(err error) {
	e.injectStartError = true
	e.startError = err
}

// InjectStopError makes Stop return err instead of delegating.
func (e *ErrorInjectingComponent) InjectStopError(err error) {
	e.injectStopError = true
	e.stopError = err
}

func (e *ErrorInjectingComponent) Initialize() error {
	if e.injectInitError {
		return e.initError
	}
	return e.LifecycleComponent.Initialize()
}

func (e *ErrorInjectingComponent) Start(ctx context.Context) error {
	if e.injectStartError {
		return e.startError
	}
	return e.LifecycleComponent.Start(ctx)
}

func (e *ErrorInjectingComponent) Stop(timeout time.Duration) error {
	if e.injectStopError {
		return e.stopError
	}
	return e.LifecycleComponent.Stop(timeout)
}

// TestErrorInjection verifies a component surfaces injected lifecycle errors.
func TestErrorInjection(t *testing.T, factory LifecycleFactory) {
	tests := []struct {
		name       string
		setupError func(*ErrorInjectingComponent)
		operation  string
	}{
		{
			name: "inject_initialize_error",
			setupError: func(comp *ErrorInjectingComponent) {
				comp.InjectInitializeError(fmt.Errorf("injected initialize error"))
			},
			operation: "initialize",
		},
		{
			name: "inject_start_error",
			setupError: func(comp *ErrorInjectingComponent) {
				comp.InjectStartError(fmt.Errorf("injected start error"))
			},
			operation: "start",
		},
		{
			name: "inject_stop_error",
			setupError: func(comp *ErrorInjectingComponent) {
				comp.InjectStopError(fmt.Errorf("injected stop error"))
			},
			operation: "stop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := NewErrorInjectingComponent(factory())
			tt.setupError(comp)

			var err error
			switch tt.operation {
			case "initialize":
				err = comp.Initialize()
			case "start":
				_ = comp.Initialize()
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				err = comp.Start(ctx)
			case "stop":
				_ = comp.Initialize()
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = comp.Start(ctx)
				cancel()
				err = comp.Stop(5 * time.Second)
			}

			assert.Error(t, err, "expected error for %s operation", tt.operation)

			_ = comp.Stop(5 * time.Second)
		})
	}
}
