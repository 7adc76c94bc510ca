// Package nats provides the NATS output component dispatching pipeline outcomes
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sembridge/command"
	"github.com/c360/sembridge/component"
	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/pipeline"
)

// Metrics holds Prometheus metrics for the NATS output component
type Metrics struct {
	commandsPublished prometheus.Counter
	auditsPublished   prometheus.Counter
	publishErrors     prometheus.Counter
	bytesPublished    prometheus.Counter
	publishLatency    prometheus.Histogram
}

// newMetrics creates and registers NATS output metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		commandsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "nats_output",
			Name:      "commands_published_total",
			Help:      "Released device commands published to the command subject",
		}),
		auditsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "nats_output",
			Name:      "audits_published_total",
			Help:      "Verdict records published to the audit subject",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "nats_output",
			Name:      "publish_errors_total",
			Help:      "Publishes that failed after encoding",
		}),
		bytesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "nats_output",
			Name:      "bytes_published_total",
			Help:      "Total payload bytes published",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sembridge",
			Subsystem: "nats_output",
			Name:      "publish_duration_seconds",
			Help:      "Time spent in Publish per outcome",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}

	registry.RegisterCounter("nats_output", "commands_published", metrics.commandsPublished)
	registry.RegisterCounter("nats_output", "audits_published", metrics.auditsPublished)
	registry.RegisterCounter("nats_output", "publish_errors", metrics.publishErrors)
	registry.RegisterCounter("nats_output", "bytes_published", metrics.bytesPublished)
	registry.RegisterHistogram("nats_output", "publish_latency", metrics.publishLatency)

	return metrics
}

// OutputConfig holds configuration for the NATS output component
type OutputConfig struct {
	CommandSubject string `json:"command_subject"`
	AuditSubject   string `json:"audit_subject"`
}

// Validate implements component.Validatable for secure config validation
func (c *OutputConfig) Validate() error {
	if err := validateSubject(c.CommandSubject); err != nil {
		return errors.WrapInvalid(fmt.Errorf("command subject: %w", err),
			"nats-output", "Validate", "subject validation")
	}
	if err := validateSubject(c.AuditSubject); err != nil {
		return errors.WrapInvalid(fmt.Errorf("audit subject: %w", err),
			"nats-output", "Validate", "subject validation")
	}
	if c.CommandSubject == c.AuditSubject {
		return errors.WrapInvalid(
			fmt.Errorf("%w: command and audit subjects must differ", errors.ErrInvalidConfig),
			"nats-output", "Validate", "subject validation")
	}
	return nil
}

// validateSubject rejects subjects that cannot be published to. Wildcard
// tokens are legal for subscriptions only.
func validateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: subject is empty", errors.ErrInvalidConfig)
	}
	if strings.ContainsAny(subject, " \t\r\n") {
		return fmt.Errorf("%w: subject %q contains whitespace", errors.ErrInvalidConfig, subject)
	}
	if strings.ContainsAny(subject, "*>") {
		return fmt.Errorf("%w: subject %q contains wildcard tokens", errors.ErrInvalidConfig, subject)
	}
	for _, token := range strings.Split(subject, ".") {
		if token == "" {
			return fmt.Errorf("%w: subject %q has an empty token", errors.ErrInvalidConfig, subject)
		}
	}
	return nil
}

// DefaultConfig returns sensible defaults for the NATS output
func DefaultConfig() OutputConfig {
	return OutputConfig{
		CommandSubject: "sembridge.commands.released",
		AuditSubject:   "sembridge.audit",
	}
}

// Publisher is the slice of the NATS client the output needs.
// natsclient.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// OutputDeps holds runtime dependencies for the NATS output component
type OutputDeps struct {
	Name            string                  // Instance name
	Config          OutputConfig            // Business logic configuration
	Publisher       Publisher               // Runtime dependency
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// auditRecord is the wire form of one audit entry. The verdict is
// flattened and stamped so the trail orders without parsing command
// timestamps.
type auditRecord struct {
	command.Verdict
	AuditedAt time.Time `json:"audited_at"`
}

// Output publishes released commands and verdict audit records to their
// NATS subjects. It is the production pipeline.Dispatcher.
type Output struct {
	name      string
	config    OutputConfig
	publisher Publisher
	logger    *slog.Logger

	// Lifecycle management
	mu          sync.Mutex
	initialized bool
	running     atomic.Bool
	startTime   time.Time

	// Metrics (atomic for thread safety)
	commandsSent atomic.Int64
	auditsSent   atomic.Int64
	bytesSent    atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Value // stores time.Time

	// Prometheus metrics
	metrics *Metrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)
var _ pipeline.Dispatcher = (*Output)(nil)

// NewOutput creates a new NATS output component
func NewOutput(deps OutputDeps) *Output {
	cfg := deps.Config
	if cfg.CommandSubject == "" && cfg.AuditSubject == "" {
		cfg = DefaultConfig()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-output")
	}

	o := &Output{
		name:      deps.Name,
		config:    cfg,
		publisher: deps.Publisher,
		logger:    logger,
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
	o.lastActivity.Store(time.Time{})
	return o
}

// Meta returns the component metadata
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = "nats-output"
	}

	return component.Metadata{
		Name: name,
		Type: "output",
		Description: fmt.Sprintf("NATS publisher releasing commands to %s and audit records to %s",
			o.config.CommandSubject, o.config.AuditSubject),
		Version: "1.0.0",
	}
}

// Health returns the current health status of the component
func (o *Output) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    o.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(o.errorCount.Load()),
		LastError:  "",
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	published := o.commandsSent.Load() + o.auditsSent.Load()
	bytes := o.bytesSent.Load()
	errorCount := o.errorCount.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	var publishedPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		publishedPerSecond = float64(published) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if total := published + errorCount; total > 0 {
		errorRate = float64(errorCount) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: publishedPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates configuration and dependencies
func (o *Output) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.config.Validate(); err != nil {
		return err
	}

	if o.publisher == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"nats-output", "Initialize", "publisher required")
	}

	o.initialized = true
	return nil
}

// Start marks the output ready to dispatch. The underlying connection
// is owned by the process, which connects it before starting components.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "nats-output", "Start", "context check")
	}

	if !o.initialized {
		return errors.WrapInvalid(fmt.Errorf("component not initialized"),
			"nats-output", "Start", "state check")
	}

	if o.running.Load() {
		return nil // Already running, idempotent
	}

	o.running.Store(true)
	o.startTime = time.Now()

	o.logger.Info("NATS output started",
		"command_subject", o.config.CommandSubject,
		"audit_subject", o.config.AuditSubject)
	return nil
}

// Stop stops dispatching. In-flight publishes are fire-and-forget;
// draining the connection is the client's job at close.
func (o *Output) Stop(time.Duration) error {
	if !o.running.Load() {
		return nil
	}
	o.running.Store(false)

	o.logger.Info("NATS output stopped")
	return nil
}

// Release publishes an approved command to the command subject
func (o *Output) Release(ctx context.Context, cmd command.DeviceCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return errors.WrapInvalid(err, "nats-output", "Release", "encode command")
	}

	if err := o.publish(ctx, o.config.CommandSubject, payload); err != nil {
		return errors.Wrap(err, "nats-output", "Release", "publish command")
	}

	o.commandsSent.Add(1)
	if o.metrics != nil {
		o.metrics.commandsPublished.Inc()
	}
	o.logger.Info("Command released",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command_type", cmd.CommandType,
		"rule_id", cmd.SourceRuleID)
	return nil
}

// Audit publishes one verdict record to the audit subject
func (o *Output) Audit(ctx context.Context, verdict command.Verdict) error {
	record := auditRecord{Verdict: verdict, AuditedAt: time.Now().UTC()}
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.WrapInvalid(err, "nats-output", "Audit", "encode verdict")
	}

	if err := o.publish(ctx, o.config.AuditSubject, payload); err != nil {
		return errors.Wrap(err, "nats-output", "Audit", "publish verdict")
	}

	o.auditsSent.Add(1)
	if o.metrics != nil {
		o.metrics.auditsPublished.Inc()
	}
	o.logger.Debug("Verdict audited",
		"command_id", verdict.Command.ID,
		"device_id", verdict.Command.DeviceID,
		"status", verdict.Status,
		"stage", string(verdict.Stage))
	return nil
}

// publish is the shared send path for both subjects
func (o *Output) publish(ctx context.Context, subject string, payload []byte) error {
	if !o.running.Load() {
		return errors.WrapTransient(errors.ErrNotStarted, "nats-output", "publish", "state check")
	}

	start := time.Now()
	err := o.publisher.Publish(ctx, subject, payload)
	elapsed := time.Since(start)

	if o.metrics != nil {
		o.metrics.publishLatency.Observe(elapsed.Seconds())
	}

	if err != nil {
		o.errorCount.Add(1)
		if o.metrics != nil {
			o.metrics.publishErrors.Inc()
		}
		return err
	}

	o.bytesSent.Add(int64(len(payload)))
	o.lastActivity.Store(time.Now())
	if o.metrics != nil {
		o.metrics.bytesPublished.Add(float64(len(payload)))
	}
	return nil
}
