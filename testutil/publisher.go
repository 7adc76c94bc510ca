package testutil

import (
	"context"
	"sync"
)

// RecordingPublisher is an in-memory stand-in for the NATS client's
// publish side. It satisfies the output component's Publisher interface
// and stores every payload per subject for verification. Thread-safe
// for concurrent use from multiple goroutines.
type RecordingPublisher struct {
	mu       sync.RWMutex
	err      error
	messages map[string][][]byte
}

// NewRecordingPublisher creates an empty recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{
		messages: make(map[string][][]byte),
	}
}

// Publish records a copy of the payload under its subject, or returns
// the injected error.
func (p *RecordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.messages[subject] = append(p.messages[subject], append([]byte(nil), data...))
	return nil
}

// SetError makes subsequent publishes fail with err. Pass nil to
// restore success.
func (p *RecordingPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Messages returns the payloads published to a subject, in order.
func (p *RecordingPublisher) Messages(subject string) [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	msgs := p.messages[subject]
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		out[i] = append([]byte(nil), m...)
	}
	return out
}

// Count returns how many payloads were published to a subject.
func (p *RecordingPublisher) Count(subject string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages[subject])
}

// Subjects returns every subject that received at least one payload.
func (p *RecordingPublisher) Subjects() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	subjects := make([]string, 0, len(p.messages))
	for subject := range p.messages {
		subjects = append(subjects, subject)
	}
	return subjects
}

// Clear discards all recorded payloads.
func (p *RecordingPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make(map[string][][]byte)
}
