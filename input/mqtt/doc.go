// Package mqtt provides an MQTT input component for ingesting sensor readings.
//
// # Overview
//
// The MQTT input subscribes to a single reading topic and maintains the
// latest validated reading per sensor. JSON payloads are decoded into
// pipeline.Reading, validated, and stored; Snapshot exposes the current
// state as a pipeline.ReadingSource so the evaluation coordinator collects
// fresh sensor values at the top of each cycle instead of processing a
// message backlog. It implements the component interfaces for lifecycle
// management and observability.
//
// # Quick Start
//
// Create an input subscribed to a readings topic:
//
//	in := mqtt.NewInput(mqtt.InputDeps{
//	    Name: "mqtt-in",
//	    Config: mqtt.InputConfig{
//	        BrokerURL: "tcp://broker.local:1883",
//	        Topic:     "sensors/readings",
//	        QoS:       1,
//	    },
//	    MetricsRegistry: registry,
//	    Logger:          logger,
//	})
//
//	if err := in.Initialize(); err != nil { ... }
//	if err := in.Start(ctx); err != nil { ... }
//
//	// Wire into the coordinator loop:
//	coord.RunLoop(ctx, interval, in.Snapshot)
//
// # Payload Format
//
// One reading per message, JSON encoded:
//
//	{
//	  "sensor_id": "sensor_living_room",
//	  "sensor_type": "temperature",
//	  "value": 31.5,
//	  "timestamp": "2026-08-23T10:15:04Z"
//	}
//
// The timestamp is optional and its format is loose: RFC3339 strings,
// epoch seconds, and epoch milliseconds are all accepted (normalized via
// pkg/timestamp). Clockless sensors may omit it and the input stamps
// arrival time. Payloads that fail to decode, or decode into a reading
// with an empty sensor id, empty sensor type, or a non-finite value, are
// counted and dropped.
//
// # Configuration
//
//   - BrokerURL: tcp://, ssl://, tls://, ws:// or wss:// broker address
//   - ClientID: MQTT client identifier (default: sembridge-input)
//   - Topic: reading topic to subscribe to
//   - QoS: subscription quality of service, 0-2 (default config uses 1)
//   - Username/Password: broker credentials, optional
//   - ConnectTimeout: bound on connect and subscribe waits (default: 10s)
//   - KeepAlive: MQTT keep-alive interval (default: 30s)
//   - TLS: *tls.Config for ssl:// and tls:// brokers
//
// # Reconnection
//
// The paho client auto-reconnects. The subscription is established in the
// on-connect handler, so it is re-established after every reconnect;
// readings resume without intervention once the broker returns.
//
// # Lifecycle Management
//
//	input.Start(ctx)
//	...
//	input.Stop(5 * time.Second)
//
// Stop unsubscribes and disconnects with a quiesce window derived from
// the timeout. Snapshot fails fast with errors.ErrNotStarted outside the
// started window, which surfaces as a skipped cycle rather than a stale
// evaluation.
//
// # Observability
//
// Prometheus metrics under the mqtt subsystem: readings received and
// rejected, bytes received, broker connection state, and last activity.
// Health combines the running flag with the client's connection state;
// DataFlow reports reading and byte rates over uptime.
package mqtt
