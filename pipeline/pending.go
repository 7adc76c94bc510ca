package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/sembridge/command"
	"github.com/c360/sembridge/errors"
)

// PendingCommand is a parked critical-device command awaiting an
// operator decision.
type PendingCommand struct {
	Command    command.DeviceCommand `json:"command"`
	Reason     string                `json:"reason"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
	ExpiresAt  time.Time             `json:"expires_at"`
}

// PendingQueue holds commands for critical devices until they are
// confirmed, rejected, or expire. It is bounded: when full, the oldest
// entry is displaced, on the grounds that a stale unconfirmed command
// is less trustworthy than a fresh one. Expiry is swept lazily on every
// operation; the queue runs no goroutine of its own.
type PendingQueue struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]PendingCommand
	onEvict  func(PendingCommand, string)
	logger   *slog.Logger
	now      func() time.Time
}

// PendingOption configures a PendingQueue.
type PendingOption func(*PendingQueue)

// WithPendingLogger sets the queue logger.
func WithPendingLogger(logger *slog.Logger) PendingOption {
	return func(q *PendingQueue) { q.logger = logger }
}

// WithEvictionCallback registers fn to be called when an entry leaves
// the queue without a decision; cause is "expired" or "displaced". The
// callback runs with the queue lock held and must not call back into
// the queue.
func WithEvictionCallback(fn func(entry PendingCommand, cause string)) PendingOption {
	return func(q *PendingQueue) { q.onEvict = fn }
}

// NewPendingQueue builds a queue holding at most capacity entries, each
// expiring ttl after enqueue. Zero values select the defaults of 100
// entries and 5 minutes.
func NewPendingQueue(capacity int, ttl time.Duration, opts ...PendingOption) *PendingQueue {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	q := &PendingQueue{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]PendingCommand),
		logger:   slog.Default().With("component", "pending"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add parks the command behind a pending verdict.
func (q *PendingQueue) Add(verdict command.Verdict) error {
	if verdict.Decision != command.DecisionPending {
		return errors.WrapInvalid(
			fmt.Errorf("verdict for command %q is %s, not pending", verdict.Command.ID, verdict.Status),
			"pipeline.PendingQueue", "Add", "verdict check")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	q.sweepLocked(now)

	if len(q.entries) >= q.capacity {
		q.displaceOldestLocked()
	}

	q.entries[verdict.Command.ID] = PendingCommand{
		Command:    verdict.Command,
		Reason:     verdict.Reason,
		EnqueuedAt: now,
		ExpiresAt:  now.Add(q.ttl),
	}
	return nil
}

// Confirm removes the parked command and returns it for release.
func (q *PendingQueue) Confirm(commandID string) (command.DeviceCommand, error) {
	return q.take(commandID, "Confirm")
}

// Reject removes the parked command without releasing it.
func (q *PendingQueue) Reject(commandID string) (command.DeviceCommand, error) {
	return q.take(commandID, "Reject")
}

func (q *PendingQueue) take(commandID, method string) (command.DeviceCommand, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweepLocked(q.now())

	entry, ok := q.entries[commandID]
	if !ok {
		return command.DeviceCommand{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrPendingNotFound, commandID),
			"pipeline.PendingQueue", method, "pending lookup")
	}
	delete(q.entries, commandID)
	return entry.Command, nil
}

// List returns the parked commands ordered by enqueue time.
func (q *PendingQueue) List() []PendingCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweepLocked(q.now())

	out := make([]PendingCommand, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
		}
		return out[i].Command.ID < out[j].Command.ID
	})
	return out
}

// Len reports how many unexpired commands are parked.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweepLocked(q.now())
	return len(q.entries)
}

func (q *PendingQueue) sweepLocked(now time.Time) {
	for id, entry := range q.entries {
		if now.After(entry.ExpiresAt) {
			delete(q.entries, id)
			q.logger.Info("Pending command expired without a decision",
				"command_id", id,
				"device_id", entry.Command.DeviceID)
			if q.onEvict != nil {
				q.onEvict(entry, "expired")
			}
		}
	}
}

func (q *PendingQueue) displaceOldestLocked() {
	var (
		oldestID string
		oldest   PendingCommand
		found    bool
	)
	for id, entry := range q.entries {
		if !found || entry.EnqueuedAt.Before(oldest.EnqueuedAt) ||
			(entry.EnqueuedAt.Equal(oldest.EnqueuedAt) && id < oldestID) {
			oldestID, oldest, found = id, entry, true
		}
	}
	if !found {
		return
	}
	delete(q.entries, oldestID)
	q.logger.Warn("Pending queue full, displacing oldest command",
		"command_id", oldestID,
		"device_id", oldest.Command.DeviceID)
	if q.onEvict != nil {
		q.onEvict(oldest, "displaced")
	}
}
