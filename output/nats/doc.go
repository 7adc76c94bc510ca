// Package nats provides a NATS output component that dispatches pipeline
// outcomes: released device commands and verdict audit records.
//
// # Overview
//
// The NATS output is the production pipeline.Dispatcher. The evaluation
// coordinator hands it every outcome of a cycle: commands that cleared
// validation and conflict resolution go to the command subject for the
// device fleet to act on, and every verdict (approved, rejected, or
// pending) goes to the audit subject so the trail reconstructs each cycle
// in full. It implements the component lifecycle and observability
// interfaces like every other long-running piece of the pipeline.
//
// # Quick Start
//
//	out := nats.NewOutput(nats.OutputDeps{
//	    Name:            "nats-out",
//	    Config:          nats.DefaultConfig(),
//	    Publisher:       client, // *natsclient.Client
//	    MetricsRegistry: registry,
//	    Logger:          logger,
//	})
//
//	if err := out.Initialize(); err != nil { ... }
//	if err := out.Start(ctx); err != nil { ... }
//
//	// Wire into the coordinator:
//	cfg.Dispatcher = out
//
// # Wire Format
//
// Released commands are the DeviceCommand JSON on the command subject:
//
//	{
//	  "command_id": "f81d4fae-...",
//	  "device_id": "device_ac",
//	  "command_type": "set_temperature",
//	  "parameters": {"temperature": 22.5},
//	  "timestamp": "2026-08-23T10:15:04Z",
//	  "source_rule_id": "rule-ac",
//	  "source_rule_priority": 80
//	}
//
// Audit records flatten the verdict and stamp publication time:
//
//	{
//	  "command": { ... },
//	  "status": "rejected",
//	  "stage": "parameters",
//	  "reason": "temperature above device maximum",
//	  "audited_at": "2026-08-23T10:15:04.128Z"
//	}
//
// Stage and reason are omitted on approvals.
//
// # Configuration
//
//   - CommandSubject: subject for released commands
//     (default: sembridge.commands.released)
//   - AuditSubject: subject for verdict records
//     (default: sembridge.audit)
//
// Subjects must be publishable: non-empty dot-separated tokens with no
// whitespace and no wildcard characters.
//
// # Lifecycle
//
// The component does not own the NATS connection. The process connects
// the client, starts the output, and runs the coordinator; on shutdown it
// stops the output first and closes the client last, so the client's
// drain flushes anything in flight.
//
//	output.Start(ctx)
//	...
//	output.Stop(5 * time.Second)
//
// Release and Audit fail fast with errors.ErrNotStarted outside the
// started window.
//
// # Observability
//
// Prometheus metrics under the nats_output subsystem: commands published,
// audits published, publish errors, bytes published, and a publish
// latency histogram. Health reports the running flag and error count;
// DataFlow reports publish rates over uptime.
//
// # Error Handling
//
//   - Encoding failures: errors.WrapInvalid (the outcome is malformed)
//   - Publish failures: classification of the underlying client error is
//     preserved, so circuit-open and dead-connection publishes surface as
//     transient
//
// The coordinator audits and logs dispatch failures; it does not retry
// inside a cycle.
package nats
