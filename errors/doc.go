// Package errors provides standardized error handling patterns for SemBridge components.
//
// # Overview
//
// The errors package implements a three-class error classification system designed for
// a reasoning pipeline that talks to unreliable external services: Transient (temporary,
// retryable), Invalid (bad input, non-retryable), and Fatal (unrecoverable, stop
// processing).
//
// This classification enables intelligent error handling strategies throughout SemBridge,
// allowing components to make informed decisions about retries, model fallback, and
// failure recovery without hardcoded error string matching.
//
// # Error Classification
//
// Errors are automatically classified based on their type or content:
//
//   - Transient: Oracle timeouts, connection issues, model unavailability (retry recommended)
//   - Invalid: Malformed commands, unknown devices, constraint violations (do not retry)
//   - Fatal: Broken configuration, invalid membership functions (stop processing)
//
// The classification system integrates seamlessly with Go's standard error handling patterns,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	// Return standard error for known conditions
//	if device == nil {
//	    return errors.ErrDeviceNotFound
//	}
//
// Wrap errors with context for debugging:
//
//	// Wrap third-party errors with component context
//	if err := oracle.Complete(ctx, prompt); err != nil {
//	    return errors.Wrap(err, "oracleClient", "Complete", "chat completion")
//	}
//
// Check classification for retry logic:
//
//	// Make retry decisions based on error class
//	if err := operation(); err != nil {
//	    if errors.IsTransient(err) {
//	        // Retry with backoff, or fall back to the next model
//	    } else if errors.IsFatal(err) {
//	        // Stop processing, escalate to operator
//	        log.Error("unrecoverable error", "error", err)
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing, debugging, and operational monitoring
// across the pipeline. The Wrap family of functions automatically applies this pattern
// while preserving error classification through the chain.
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")  // Preserves original class
//
// # Standard Error Variables
//
// The package provides pre-defined error variables for common conditions, organized by category:
//
//   - Component lifecycle: ErrAlreadyStarted, ErrNotStarted, ErrShuttingDown
//   - Connection issues: ErrNoConnection, ErrConnectionLost, ErrConnectionTimeout
//   - Oracle calls: ErrOracleUnreachable, ErrOracleTimeout, ErrModelUnavailable, ErrUnparsableReply
//   - Command validation: ErrMalformedCommand, ErrDeviceNotFound, ErrUnsupportedCommand,
//     ErrParameterOutOfRange, ErrNotWhitelisted, ErrRateLimited
//   - Configuration: ErrInvalidConfig, ErrMissingConfig, ErrInvalidMembership
//
// Use these variables instead of creating custom error messages for consistency:
//
//	// Good - uses standard variable
//	if !whitelisted {
//	    return errors.ErrNotWhitelisted
//	}
//
//	// Avoid - custom error message
//	if !whitelisted {
//	    return errors.New("command not allowed")
//	}
//
// # Retry Integration
//
// The package deliberately carries no retry machinery of its own. Components that
// retry use the retry package directly and gate attempts on classification:
//
//	result, err := retry.DoWithResult(ctx, retry.Quick(), func(ctx context.Context) (string, error) {
//	    reply, err := oracle.Complete(ctx, prompt)
//	    if err != nil && !errors.IsTransient(err) {
//	        return "", retry.NonRetryable(err)
//	    }
//	    return reply, err
//	})
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	// Check error classification
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    log.Printf("Component: %s, Class: %s", ce.Component, ce.Class)
//	}
//
//	// Check for specific standard errors
//	if errors.Is(err, errors.ErrOracleTimeout) {
//	    // Handle timeout specifically
//	}
//
//	// Classification is preserved through error chains
//	wrapped := errors.Wrap(errors.ErrOracleTimeout, "Oracle", "Complete", "request")
//	if errors.IsTransient(wrapped) {  // true - classification preserved
//	    // Retry logic
//	}
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are automatically
// classified as Transient, enabling consistent handling of context-based timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	if err := oracle.Complete(ctx, prompt); err != nil {
//	    if errors.IsTransient(err) {
//	        // Handles both network timeouts AND context timeouts
//	        // A timed-out oracle call falls back to the next model
//	    }
//	}
//
// # Performance Considerations
//
// Classification uses type assertions for known types (O(1)) and falls back to
// pattern matching for unknown errors (O(n) where n is pattern count). The overhead
// is negligible compared to the actual error condition being handled.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable constants safe for concurrent access. The ClassifiedError type
// is safe to share across goroutines after creation.
package errors
