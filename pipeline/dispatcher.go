package pipeline

import (
	"context"

	"github.com/c360/sembridge/command"
)

// Dispatcher receives the outcome of every cycle. Release delivers an
// approved command to its destination; Audit records a verdict on the
// audit trail. Every verdict is audited, including approvals, so the
// trail reconstructs each cycle in full.
type Dispatcher interface {
	Release(ctx context.Context, cmd command.DeviceCommand) error
	Audit(ctx context.Context, verdict command.Verdict) error
}

// NoopDispatcher discards everything. It is the default when no output
// component is wired, which keeps the coordinator usable as a library.
type NoopDispatcher struct{}

func (NoopDispatcher) Release(context.Context, command.DeviceCommand) error { return nil }

func (NoopDispatcher) Audit(context.Context, command.Verdict) error { return nil }
