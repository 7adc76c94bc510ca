// Package natsclient provides the NATS client the command dispatcher
// publishes through, with circuit breaker protection and automatic
// reconnection.
//
// The package wraps the standard NATS Go client with reliability
// features: a circuit breaker that fails publishes fast after a
// threshold of consecutive failures (default: 5) instead of hammering a
// dead broker, exponential backoff between circuit tests, connection
// state tracking with configurable callbacks, and an optional metrics
// poller that samples connection statistics into Prometheus gauges.
//
// # Connection Lifecycle
//
// The client moves through Disconnected → Connecting → Connected →
// Reconnecting → Connected, with CircuitOpen entered from any state
// after repeated failures. Transitions are managed internally; callers
// observe them through Status, IsHealthy, and the state-change
// callbacks.
//
// # Basic Usage
//
// Creating and connecting:
//
//	client, err := natsclient.NewClient(
//	    []string{"nats://localhost:4222"},
//	    natsclient.WithName("sembridge"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "sembridge.commands.released", payload)
//
// # Advanced Configuration
//
//	client, err := natsclient.NewClient(urls,
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithReconnectWait(2*time.Second),
//	    natsclient.WithCircuitBreakerThreshold(10),
//	    natsclient.WithTLSConfig(tlsConf),
//	    natsclient.WithMetrics(registry),
//	    natsclient.WithDisconnectCallback(func(err error) {
//	        logger.Warn("NATS disconnected", "error", err)
//	    }),
//	)
//
// Publish returns ErrCircuitOpen while the breaker is open and
// ErrNotConnected when the connection is down; the dispatcher treats
// both as transient and leaves retry policy to the caller.
package natsclient
