package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	// LogLevelDebug represents debug-level logs
	LogLevelDebug LogLevel = "DEBUG"
	// LogLevelInfo represents informational logs
	LogLevelInfo LogLevel = "INFO"
	// LogLevelWarn represents warning logs
	LogLevelWarn LogLevel = "WARN"
	// LogLevelError represents error logs
	LogLevelError LogLevel = "ERROR"
)

// LogEntry represents a structured log entry published to the bus and
// consumed by operator tooling watching the pipeline.
type LogEntry struct {
	Timestamp string   `json:"timestamp"` // RFC3339 format
	Level     LogLevel `json:"level"`
	Component string   `json:"component"`
	Message   string   `json:"message"`
	Stack     string   `json:"stack,omitempty"` // Stack trace for errors
}

// Publisher is the transport a Logger mirrors entries through. It is
// satisfied by natsclient.Client; a publish failure is reported locally
// and never propagates to the caller.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Logger provides structured logging that mirrors entries to the message
// bus for remote consumption. It wraps a standard slog.Logger for local
// logging while also publishing to sembridge.logs.{component} when a
// publisher is configured.
type Logger struct {
	componentName string
	pub           Publisher
	logger        *slog.Logger
	enabled       bool
}

// NewLogger creates a component logger. A nil publisher disables bus
// mirroring; local slog output still happens.
func NewLogger(componentName string, pub Publisher, logger *slog.Logger) *Logger {
	return &Logger{
		componentName: componentName,
		pub:           pub,
		logger:        logger,
		enabled:       pub != nil,
	}
}

// Debug logs a debug-level message
func (cl *Logger) Debug(msg string) {
	cl.DebugContext(context.Background(), msg)
}

// Info logs an info-level message
func (cl *Logger) Info(msg string) {
	cl.InfoContext(context.Background(), msg)
}

// Warn logs a warning-level message
func (cl *Logger) Warn(msg string) {
	cl.WarnContext(context.Background(), msg)
}

// Error logs an error-level message with optional error details
func (cl *Logger) Error(msg string, err error) {
	cl.ErrorContext(context.Background(), msg, err)
}

// DebugContext logs a debug-level message with context
func (cl *Logger) DebugContext(ctx context.Context, msg string) {
	cl.mirror(ctx, LogLevelDebug, msg, "")
	if cl.logger != nil {
		cl.logger.Debug(msg, "component", cl.componentName)
	}
}

// InfoContext logs an info-level message with context
func (cl *Logger) InfoContext(ctx context.Context, msg string) {
	cl.mirror(ctx, LogLevelInfo, msg, "")
	if cl.logger != nil {
		cl.logger.Info(msg, "component", cl.componentName)
	}
}

// WarnContext logs a warning-level message with context
func (cl *Logger) WarnContext(ctx context.Context, msg string) {
	cl.mirror(ctx, LogLevelWarn, msg, "")
	if cl.logger != nil {
		cl.logger.Warn(msg, "component", cl.componentName)
	}
}

// ErrorContext logs an error-level message with optional error details
// and context
func (cl *Logger) ErrorContext(ctx context.Context, msg string, err error) {
	stack := ""
	if err != nil {
		stack = fmt.Sprintf("%+v", err)
	}
	cl.mirror(ctx, LogLevelError, msg, stack)
	if cl.logger != nil {
		cl.logger.Error(msg, "component", cl.componentName, "error", err)
	}
}

// mirror publishes a log entry to the bus. Entry loss is acceptable here:
// the local slog line is the system of record, the bus copy is a
// convenience for remote tailing.
func (cl *Logger) mirror(ctx context.Context, level LogLevel, message, stack string) {
	if !cl.enabled {
		return
	}
	if ctx.Err() != nil {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: cl.componentName,
		Message:   message,
		Stack:     stack,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		if cl.logger != nil {
			cl.logger.Error("Failed to marshal log entry", "error", err)
		}
		return
	}

	subject := fmt.Sprintf("sembridge.logs.%s", cl.componentName)
	if err := cl.pub.Publish(ctx, subject, data); err != nil {
		if cl.logger != nil {
			cl.logger.Error("Failed to publish log entry", "error", err, "subject", subject)
		}
	}
}
