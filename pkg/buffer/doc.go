// Package buffer provides a generic, thread-safe ring buffer with
// configurable overflow policies.
//
// A CircularBuffer holds a fixed number of items. When full, the
// overflow policy decides what a further write costs: DropOldest evicts
// the oldest item (the default, suiting history windows where recent
// entries matter most), DropNewest discards the incoming item (suiting
// queues where established work keeps precedence).
//
// Reads are destructive and FIFO; Items returns a non-destructive copy
// for inspection surfaces that must not consume the window. Statistics
// are always collected and can additionally be exported as Prometheus
// metrics via WithMetrics.
//
// Usage:
//
//	ring, err := buffer.NewCircularBuffer[CycleSummary](32,
//	    buffer.WithMetrics[CycleSummary](registry, "cycle_history"))
//	if err != nil { ... }
//
//	ring.Write(summary)
//	recent := ring.Items() // oldest first, buffer untouched
package buffer
