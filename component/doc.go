// Package component defines the contracts shared by every long-running piece
// of SemBridge: the lifecycle every component follows, the introspection
// surface the process manager polls, and the NATS log mirror.
//
// # Overview
//
// SemBridge wires a fixed set of components at startup: an MQTT input, the
// evaluation coordinator, and a NATS output. There is no dynamic discovery or
// plugin registry; main constructs each component directly and manages the
// set through the interfaces defined here.
//
// Three contracts matter:
//
//   - Discoverable: identity (Meta), liveness (Health), and throughput
//     (DataFlow). The health monitor in main polls these on a timer and feeds
//     the results into the core metrics.
//   - LifecycleComponent: Discoverable plus Initialize, Start, and Stop.
//     Components are started in dependency order and stopped in reverse.
//   - Logger: a slog wrapper that mirrors component log entries onto a NATS
//     subject so operators can watch a live pipeline without shell access to
//     the host.
//
// # Lifecycle Pattern
//
// Every component follows the same three-phase lifecycle:
//
//	comp := pipeline.NewCoordinator(cfg, deps)
//
//	if err := comp.Initialize(); err != nil {
//		return err
//	}
//	if err := comp.Start(ctx); err != nil {
//		return err
//	}
//	defer comp.Stop(10 * time.Second)
//
// Initialize allocates resources and validates configuration but starts no
// goroutines. Start spawns the component's goroutines; the context bounds
// startup only, and components never store it. Stop shuts down and waits up
// to the given timeout for in-flight work to drain.
//
// Stop must be idempotent and safe to call on a component that never
// started. After Stop, a component may require Initialize again before it can
// restart.
//
// # Logging
//
// NewLogger wraps a slog.Logger and, when given a Publisher (satisfied by
// natsclient.Client), mirrors every entry as JSON to
// sembridge.logs.<component>:
//
//	logger := component.NewLogger("app", natsClient, slog.Default())
//	logger.Info("evaluation cycle complete")
//	logger.ErrorContext(ctx, "oracle consultation failed", err)
//
// Error entries carry the error rendering. With a nil publisher entries
// still go to the wrapped slog.Logger; the mirror is best-effort and a
// failed publish never blocks the component.
//
// # Lifecycle Test Suite
//
// StandardLifecycleTests captures the lifecycle contract as a reusable test
// suite. Component packages run it against their own factory:
//
//	func TestCoordinatorLifecycle(t *testing.T) {
//		component.StandardLifecycleTests(t, func() component.LifecycleComponent {
//			return newTestCoordinator(t)
//		})
//	}
//
// The suite checks state transitions, double Start/Stop, restart after Stop,
// behavior under already-cancelled contexts, concurrent lifecycle calls, and
// resource leaks across repeated lifecycles.
package component
