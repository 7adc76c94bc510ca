package command

import (
	"sync"
	"time"
)

// windowLimiter caps per-device command counts in a trailing window.
// Rejected attempts consume no budget. One mutex covers all devices;
// validation is serialized per cycle and the window holds at most the
// cap per device, so contention and memory both stay small.
type windowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	seen   map[string][]time.Time
}

func newWindowLimiter(window time.Duration, limit int) *windowLimiter {
	return &windowLimiter{
		window: window,
		limit:  limit,
		seen:   make(map[string][]time.Time),
	}
}

// Allow records an attempt for deviceID at now if the device is still
// under its cap and reports whether it was admitted.
func (l *windowLimiter) Allow(deviceID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := l.seen[deviceID][:0]
	for _, ts := range l.seen[deviceID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.seen[deviceID] = kept
		return false
	}
	l.seen[deviceID] = append(kept, now)
	return true
}

// Count reports the admitted attempts still inside the window.
func (l *windowLimiter) Count(deviceID string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	n := 0
	for _, ts := range l.seen[deviceID] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
