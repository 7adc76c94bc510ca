package component

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryBus records published log entries per subject.
type memoryBus struct {
	mu      sync.Mutex
	entries []LogEntry
	subject string
	failErr error
}

func (b *memoryBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return b.failErr
	}
	var entry LogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return err
	}
	b.subject = subject
	b.entries = append(b.entries, entry)
	return nil
}

func (b *memoryBus) recorded() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewLogger(t *testing.T) {
	logger := quietLogger()

	tests := []struct {
		name        string
		pub         Publisher
		wantEnabled bool
	}{
		{name: "with publisher", pub: &memoryBus{}, wantEnabled: true},
		{name: "without publisher", pub: nil, wantEnabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := NewLogger("test-component", tt.pub, logger)

			assert.Equal(t, "test-component", cl.componentName)
			assert.Equal(t, tt.wantEnabled, cl.enabled)
			assert.Equal(t, logger, cl.logger)
		})
	}
}

func TestLogger_MirrorsLevels(t *testing.T) {
	bus := &memoryBus{}
	cl := NewLogger("test-component", bus, quietLogger())

	tests := []struct {
		name    string
		logFunc func()
		wantMsg string
		wantLvl LogLevel
		wantErr bool
	}{
		{
			name:    "Debug level",
			logFunc: func() { cl.Debug("debug message") },
			wantMsg: "debug message",
			wantLvl: LogLevelDebug,
		},
		{
			name:    "Info level",
			logFunc: func() { cl.Info("info message") },
			wantMsg: "info message",
			wantLvl: LogLevelInfo,
		},
		{
			name:    "Warn level",
			logFunc: func() { cl.Warn("warning message") },
			wantMsg: "warning message",
			wantLvl: LogLevelWarn,
		},
		{
			name:    "Error level without error",
			logFunc: func() { cl.Error("error message", nil) },
			wantMsg: "error message",
			wantLvl: LogLevelError,
		},
		{
			name:    "Error level with error",
			logFunc: func() { cl.Error("error occurred", fmt.Errorf("test error")) },
			wantMsg: "error occurred",
			wantLvl: LogLevelError,
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.logFunc()

			entries := bus.recorded()
			require.Len(t, entries, i+1)
			entry := entries[i]

			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLvl, entry.Level)
			assert.Equal(t, "test-component", entry.Component)

			_, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
			assert.NoError(t, err, "timestamp should be valid RFC3339")

			if tt.wantErr {
				assert.Contains(t, entry.Stack, "test error")
			} else {
				assert.Empty(t, entry.Stack)
			}
		})
	}

	assert.Equal(t, "sembridge.logs.test-component", bus.subject)
}

func TestLogger_DisabledPublishing(t *testing.T) {
	cl := NewLogger("test-component", nil, quietLogger())

	assert.False(t, cl.enabled, "logger should be disabled without a publisher")

	// None of these may panic without a publisher
	cl.Debug("debug message")
	cl.Info("info message")
	cl.Warn("warning message")
	cl.Error("error message", fmt.Errorf("test error"))
}

func TestLogger_PublishFailureStaysLocal(t *testing.T) {
	bus := &memoryBus{failErr: fmt.Errorf("bus unavailable")}

	var local strings.Builder
	cl := NewLogger("test-component", bus, slog.New(slog.NewTextHandler(&local, nil)))

	cl.Info("still logged locally")

	assert.Empty(t, bus.recorded())
	assert.Contains(t, local.String(), "still logged locally")
	assert.Contains(t, local.String(), "Failed to publish log entry")
}

func TestLogger_CancelledContextSkipsMirror(t *testing.T) {
	bus := &memoryBus{}
	cl := NewLogger("test-component", bus, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cl.InfoContext(ctx, "not mirrored")
	assert.Empty(t, bus.recorded(), "cancelled context should skip the bus publish")
}

func TestLogger_ConcurrentLogging(t *testing.T) {
	bus := &memoryBus{}
	cl := NewLogger("concurrent-component", bus, quietLogger())

	numGoroutines := 10
	logsPerGoroutine := 5

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				cl.Info(fmt.Sprintf("log from goroutine %d, message %d", id, j))
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, bus.recorded(), numGoroutines*logsPerGoroutine)
}
