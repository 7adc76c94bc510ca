package buffer

import (
	"github.com/c360/sembridge/metric"
)

// Option configures a CircularBuffer at construction.
type Option[T any] func(*options[T])

type options[T any] struct {
	policy    OverflowPolicy
	onDrop    DropCallback[T]
	registry  *metric.MetricsRegistry
	component string
}

// WithOverflowPolicy sets the full-buffer behavior. Default DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *options[T]) {
		o.policy = policy
	}
}

// WithDropCallback registers an observer for items lost to overflow.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *options[T]) {
		o.onDrop = cb
	}
}

// WithMetrics exports buffer activity as Prometheus metrics labeled with
// the owning component. A nil registry or empty component disables the
// export.
func WithMetrics[T any](registry *metric.MetricsRegistry, component string) Option[T] {
	return func(o *options[T]) {
		if registry != nil && component != "" {
			o.registry = registry
			o.component = component
		}
	}
}

func applyOptions[T any](opts ...Option[T]) *options[T] {
	o := &options[T]{policy: DropOldest}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
