// Package pipeline drives the evaluation cycle: sensor readings are
// fuzzified into a linguistic snapshot, every enabled rule is put to
// the oracle against that snapshot, the replies are interpreted,
// synthesized into commands, validated, arbitrated, and the survivors
// handed to a dispatcher. The coordinator owns the cycle; triggers
// (timer ticks, state-change notifications) come from the caller.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/sembridge/command"
	"github.com/c360/sembridge/component"
	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/fuzzy"
	"github.com/c360/sembridge/metric"
	"github.com/c360/sembridge/oracle"
	"github.com/c360/sembridge/pkg/buffer"
	"github.com/c360/sembridge/pkg/worker"
	"github.com/c360/sembridge/rules"
)

// CycleSummary reports what one evaluation cycle did.
type CycleSummary struct {
	Readings          int            `json:"readings"`
	RulesEvaluated    int            `json:"rules_evaluated"`
	OracleFailures    int            `json:"oracle_failures"`
	ParseFailures     int            `json:"parse_failures"`
	CommandsGenerated int            `json:"commands_generated"`
	Rejected          map[string]int `json:"rejected,omitempty"`
	Pending           int            `json:"pending"`
	Released          int            `json:"released"`
	Duration          time.Duration  `json:"duration"`
}

// CoordinatorConfig wires the evaluation pipeline together. Engine,
// Selector, Oracle, and Validator are required.
type CoordinatorConfig struct {
	Engine    *fuzzy.Engine
	Selector  *rules.Selector
	Oracle    oracle.Client
	Validator *command.Validator

	// Dispatcher receives released commands and audit records.
	// Defaults to NoopDispatcher.
	Dispatcher Dispatcher

	// Pending parks critical-device commands. Built from
	// PendingCapacity and PendingTTL with an audit-on-eviction callback
	// when nil.
	Pending *PendingQueue

	// PendingCapacity and PendingTTL size the built-in pending queue.
	// Zero values select the queue defaults. Ignored when Pending is
	// set.
	PendingCapacity int
	PendingTTL      time.Duration

	// Workers bounds concurrent candidate evaluations. Default 4.
	Workers int

	// QueueSize bounds queued candidates per cycle. Default 64.
	QueueSize int

	// HistorySize bounds the ring of retained summaries of completed
	// cycles. Zero selects the default (32); negative disables
	// retention.
	HistorySize int

	Logger  *slog.Logger
	Metrics *metric.MetricsRegistry
}

// Coordinator drives evaluation cycles over a bounded worker pool. It
// implements component.LifecycleComponent; cycles only run between
// Start and Stop.
type Coordinator struct {
	engine     *fuzzy.Engine
	selector   *rules.Selector
	oracle     oracle.Client
	validator  *command.Validator
	dispatcher Dispatcher
	pending    *PendingQueue
	history    *buffer.CircularBuffer[CycleSummary]
	workers    int
	queueSize  int
	logger     *slog.Logger
	registry   *metric.MetricsRegistry
	metrics    *coordinatorMetrics

	mu        sync.Mutex
	state     component.State
	startTime time.Time
	pool      *worker.Pool[candidateJob]
	// The shared registry accepts each collector once, so only the
	// first pool binds metrics; later rebuilds run on atomic stats.
	poolMetricsBound bool

	inFlight      atomic.Bool
	errorCount    atomic.Int64
	lastErr       atomic.Value
	totalReadings atomic.Int64
	totalReleased atomic.Int64
	lastActivity  atomic.Int64
}

var _ component.LifecycleComponent = (*Coordinator)(nil)

type candidateJob struct {
	ctx       context.Context
	index     int
	candidate rules.Candidate
	outcome   *candidateOutcome
	done      chan<- int
}

type candidateOutcome struct {
	ruleID       string
	err          error
	noAction     bool
	parseFailure bool
	diagnostic   string
	verdict      *command.Verdict
}

// NewCoordinator validates cfg and builds the coordinator. Call
// Initialize and Start before running cycles.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	switch {
	case cfg.Engine == nil:
		return nil, invalidCoordinatorConfig("fuzzy engine is required")
	case cfg.Selector == nil:
		return nil, invalidCoordinatorConfig("rule selector is required")
	case cfg.Oracle == nil:
		return nil, invalidCoordinatorConfig("oracle client is required")
	case cfg.Validator == nil:
		return nil, invalidCoordinatorConfig("command validator is required")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "coordinator")
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NoopDispatcher{}
	}

	c := &Coordinator{
		engine:     cfg.Engine,
		selector:   cfg.Selector,
		oracle:     cfg.Oracle,
		validator:  cfg.Validator,
		dispatcher: dispatcher,
		pending:    cfg.Pending,
		workers:    workers,
		queueSize:  queueSize,
		logger:     logger,
		registry:   cfg.Metrics,
		state:      component.StateCreated,
	}
	if c.pending == nil {
		c.pending = NewPendingQueue(cfg.PendingCapacity, cfg.PendingTTL,
			WithPendingLogger(logger),
			WithEvictionCallback(c.auditEviction))
	}
	if cfg.HistorySize >= 0 {
		size := cfg.HistorySize
		if size == 0 {
			size = 32
		}
		history, err := buffer.NewCircularBuffer[CycleSummary](size,
			buffer.WithMetrics[CycleSummary](cfg.Metrics, "cycle_history"))
		if err != nil {
			// Metric name collision on a shared registry; keep the
			// history itself.
			logger.Warn("Cycle history metrics unavailable", "error", err)
			history, _ = buffer.NewCircularBuffer[CycleSummary](size)
		}
		c.history = history
	}
	if cfg.Metrics != nil {
		c.metrics = newCoordinatorMetrics(cfg.Metrics)
	}
	return c, nil
}

func invalidCoordinatorConfig(detail string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, detail),
		"pipeline.Coordinator", "NewCoordinator", "config validation")
}

// Meta implements component.Discoverable.
func (c *Coordinator) Meta() component.Metadata {
	return component.Metadata{
		Name:        "evaluation-coordinator",
		Type:        "pipeline",
		Description: "Fuzzifies readings, arbitrates rules through the oracle, releases validated commands",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (c *Coordinator) Health() component.HealthStatus {
	c.mu.Lock()
	state := c.state
	startTime := c.startTime
	c.mu.Unlock()

	var uptime time.Duration
	if state == component.StateStarted {
		uptime = time.Since(startTime)
	}
	status := component.HealthStatus{
		Healthy:    state == component.StateStarted,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     uptime,
	}
	if v := c.lastErr.Load(); v != nil {
		status.LastError = v.(string)
	}
	return status
}

// DataFlow implements component.Discoverable.
func (c *Coordinator) DataFlow() component.FlowMetrics {
	c.mu.Lock()
	state := c.state
	startTime := c.startTime
	c.mu.Unlock()

	flow := component.FlowMetrics{}
	if nano := c.lastActivity.Load(); nano > 0 {
		flow.LastActivity = time.Unix(0, nano)
	}
	if state != component.StateStarted {
		return flow
	}
	uptime := time.Since(startTime).Seconds()
	if uptime <= 0 {
		return flow
	}
	readings := c.totalReadings.Load()
	flow.MessagesPerSecond = float64(readings) / uptime
	if readings > 0 {
		flow.ErrorRate = float64(c.errorCount.Load()) / float64(readings)
	}
	return flow
}

// Initialize builds a fresh worker pool. It must be called again after
// Stop before the coordinator can restart; pools are one-shot.
func (c *Coordinator) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == component.StateStarted {
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"pipeline.Coordinator", "Initialize", "lifecycle")
	}

	var opts []worker.Option[candidateJob]
	if c.registry != nil && !c.poolMetricsBound {
		opts = append(opts, worker.WithMetricsRegistry[candidateJob](c.registry, "coordinator"))
		c.poolMetricsBound = true
	}
	c.pool = worker.NewPool(c.workers, c.queueSize, c.processJob, opts...)
	c.state = component.StateInitialized
	return nil
}

// Start brings the worker pool up. The context is used for startup and
// passed to the pool's workers; it is not stored.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(fmt.Errorf("start aborted: %w", err),
			"pipeline.Coordinator", "Start", "context check")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case component.StateStarted:
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"pipeline.Coordinator", "Start", "lifecycle")
	case component.StateInitialized:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("coordinator not initialized (state %s)", c.state),
			"pipeline.Coordinator", "Start", "lifecycle")
	}

	if err := c.pool.Start(ctx); err != nil {
		c.state = component.StateFailed
		c.recordError(err)
		return errors.WrapTransient(err, "pipeline.Coordinator", "Start", "worker pool start")
	}
	c.state = component.StateStarted
	c.startTime = time.Now()
	c.logger.Info("Coordinator started", "workers", c.workers, "queue_size", c.queueSize)
	return nil
}

// Stop drains the worker pool. Queued candidate evaluations finish
// unless the timeout expires first.
func (c *Coordinator) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != component.StateStarted {
		return nil
	}

	err := c.pool.Stop(timeout)
	c.state = component.StateStopped
	if err != nil {
		c.recordError(err)
		return errors.WrapTransient(err, "pipeline.Coordinator", "Stop", "worker pool stop")
	}
	c.logger.Info("Coordinator stopped")
	return nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() component.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunCycle drives one evaluation cycle over the given readings. A
// second call while one cycle is in flight returns ErrCycleInFlight
// without side effects. Per-candidate failures never abort the cycle;
// they are counted in the summary and logged.
func (c *Coordinator) RunCycle(ctx context.Context, readings []Reading) (CycleSummary, error) {
	c.mu.Lock()
	if c.state != component.StateStarted {
		state := c.state
		c.mu.Unlock()
		return CycleSummary{}, errors.WrapInvalid(
			fmt.Errorf("%w: coordinator is %s", errors.ErrNotStarted, state),
			"pipeline.Coordinator", "RunCycle", "lifecycle")
	}
	pool := c.pool
	c.mu.Unlock()

	if !c.inFlight.CompareAndSwap(false, true) {
		return CycleSummary{}, errors.WrapTransient(errors.ErrCycleInFlight,
			"pipeline.Coordinator", "RunCycle", "overlap guard")
	}
	defer c.inFlight.Store(false)

	start := time.Now()
	summary := CycleSummary{Readings: len(readings), Rejected: make(map[string]int)}
	c.totalReadings.Add(int64(len(readings)))

	descriptions := make([]fuzzy.Description, 0, len(readings))
	for _, reading := range readings {
		result, err := c.engine.Fuzzify(reading.SensorType, reading.Value)
		if err != nil {
			c.recordError(err)
			c.logger.Warn("Reading skipped",
				"sensor_id", reading.SensorID,
				"sensor_type", reading.SensorType,
				"error", err)
			continue
		}
		descriptions = append(descriptions, fuzzy.Describe(reading.SensorID, result))
	}

	candidates := c.selector.Select(descriptions)
	summary.RulesEvaluated = len(candidates)

	// Each candidate writes only its own outcome slot and signals on
	// the buffered channel, so no completion is ever lost or blocked.
	outcomes := make([]candidateOutcome, len(candidates))
	done := make(chan int, len(candidates))
	completed := 0
	for i := range candidates {
		job := candidateJob{
			ctx:       ctx,
			index:     i,
			candidate: candidates[i],
			outcome:   &outcomes[i],
			done:      done,
		}
		if err := pool.Submit(job); err != nil {
			outcomes[i] = candidateOutcome{
				ruleID: candidates[i].Rule.ID,
				err: errors.WrapTransient(err,
					"pipeline.Coordinator", "RunCycle", "candidate submit"),
			}
			completed++
		}
	}
	for completed < len(candidates) {
		select {
		case <-done:
			completed++
		case <-ctx.Done():
			// Workers abandon queued jobs when the context dies, so
			// waiting longer cannot help. The outcome slots stay with
			// the workers; nothing reads them after this return.
			summary.Duration = time.Since(start)
			return summary, errors.WrapTransient(
				fmt.Errorf("cycle aborted: %w", ctx.Err()),
				"pipeline.Coordinator", "RunCycle", "candidate evaluation")
		}
	}

	verdicts := make([]command.Verdict, 0, len(outcomes))
	for _, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			summary.OracleFailures++
			c.recordError(outcome.err)
			c.logger.Warn("Candidate evaluation failed",
				"rule_id", outcome.ruleID,
				"error", outcome.err)
		case outcome.parseFailure:
			summary.ParseFailures++
			c.logger.Warn("Oracle reply unparsable, treating as no action",
				"rule_id", outcome.ruleID,
				"diagnostic", outcome.diagnostic)
		case outcome.verdict != nil:
			summary.CommandsGenerated++
			verdicts = append(verdicts, *outcome.verdict)
		}
	}

	resolved, err := command.Resolve(verdicts)
	if err != nil {
		c.recordError(err)
		c.logger.Error("Conflict resolution failed for some devices", "error", err)
	}

	for _, verdict := range resolved {
		switch verdict.Decision {
		case command.DecisionApproved:
			c.recordTrigger(verdict.Command.SourceRuleID)
			if err := c.dispatcher.Release(ctx, verdict.Command); err != nil {
				c.recordError(err)
				c.logger.Error("Command release failed",
					"command_id", verdict.Command.ID,
					"device_id", verdict.Command.DeviceID,
					"error", err)
			} else {
				summary.Released++
				c.totalReleased.Add(1)
			}
		case command.DecisionPending:
			c.recordTrigger(verdict.Command.SourceRuleID)
			if err := c.pending.Add(verdict); err != nil {
				c.recordError(err)
				c.logger.Error("Failed to park pending command",
					"command_id", verdict.Command.ID,
					"error", err)
			} else {
				summary.Pending++
			}
		case command.DecisionRejected:
			summary.Rejected[string(verdict.Stage)]++
		}
		c.audit(ctx, verdict)
	}

	summary.Duration = time.Since(start)
	c.lastActivity.Store(time.Now().UnixNano())
	if c.metrics != nil {
		c.metrics.observe(summary)
	}
	if c.history != nil {
		c.history.Write(summary)
	}
	c.logger.Info("Evaluation cycle complete",
		"readings", summary.Readings,
		"rules", summary.RulesEvaluated,
		"generated", summary.CommandsGenerated,
		"released", summary.Released,
		"pending", summary.Pending,
		"oracle_failures", summary.OracleFailures,
		"parse_failures", summary.ParseFailures,
		"duration", summary.Duration)
	return summary, nil
}

// RunLoop drives timer-triggered cycles until ctx is cancelled. Ticks
// that arrive while a cycle is still in flight are skipped. An empty
// snapshot skips the cycle; there is nothing to tell the oracle.
func (c *Coordinator) RunLoop(ctx context.Context, interval time.Duration, source ReadingSource) error {
	return c.RunLoopTriggered(ctx, interval, source, nil)
}

// RunLoopTriggered is RunLoop with an additional manual trigger: a
// delivery on trigger runs a cycle immediately, for callers that want
// state-change driven evaluation between ticks. A nil trigger never
// fires.
func (c *Coordinator) RunLoopTriggered(ctx context.Context, interval time.Duration, source ReadingSource, trigger <-chan struct{}) error {
	if interval <= 0 {
		return invalidCoordinatorConfig("loop interval must be positive")
	}
	if source == nil {
		return invalidCoordinatorConfig("reading source is required")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.logger.Info("Evaluation loop running", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Evaluation loop stopped")
			return nil
		case <-ticker.C:
		case <-trigger:
		}

		readings, err := source(ctx)
		if err != nil {
			c.recordError(err)
			c.logger.Warn("Reading source failed", "error", err)
			continue
		}
		if len(readings) == 0 {
			c.logger.Debug("No readings, skipping cycle")
			continue
		}
		if _, err := c.RunCycle(ctx, readings); err != nil {
			if stderrors.Is(err, errors.ErrCycleInFlight) {
				c.logger.Debug("Cycle still in flight, skipping tick")
				continue
			}
			c.logger.Warn("Evaluation cycle failed", "error", err)
		}
	}
}

// ConfirmPending releases a parked critical-device command.
func (c *Coordinator) ConfirmPending(ctx context.Context, commandID string) error {
	cmd, err := c.pending.Confirm(commandID)
	if err != nil {
		return err
	}
	if err := c.dispatcher.Release(ctx, cmd); err != nil {
		c.recordError(err)
		return errors.WrapTransient(err, "pipeline.Coordinator", "ConfirmPending", "command release")
	}
	c.totalReleased.Add(1)
	c.audit(ctx, command.Verdict{
		Command:  cmd,
		Decision: command.DecisionApproved,
		Status:   command.DecisionApproved.String(),
		Reason:   "confirmed by operator",
	})
	c.logger.Info("Pending command confirmed and released",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID)
	return nil
}

// RejectPending discards a parked command.
func (c *Coordinator) RejectPending(ctx context.Context, commandID, reason string) error {
	cmd, err := c.pending.Reject(commandID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "rejected by operator"
	}
	c.audit(ctx, command.Verdict{
		Command:  cmd,
		Decision: command.DecisionRejected,
		Status:   command.DecisionRejected.String(),
		Stage:    command.StageCritical,
		Reason:   reason,
	})
	c.logger.Info("Pending command rejected",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"reason", reason)
	return nil
}

// PendingCommands lists the parked commands awaiting confirmation.
func (c *Coordinator) PendingCommands() []PendingCommand {
	return c.pending.List()
}

// RecentCycles returns the retained summaries of completed cycles, most
// recent first. Aborted cycles are not retained. Returns nil when
// history retention is disabled.
func (c *Coordinator) RecentCycles() []CycleSummary {
	if c.history == nil {
		return nil
	}
	items := c.history.Items()
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// processJob runs on the worker pool. The cycle context rides in the
// job; the pool context only governs worker shutdown.
func (c *Coordinator) processJob(_ context.Context, job candidateJob) error {
	*job.outcome = c.evaluate(job.ctx, job.candidate)
	job.done <- job.index
	return job.outcome.err
}

func (c *Coordinator) evaluate(ctx context.Context, candidate rules.Candidate) candidateOutcome {
	outcome := candidateOutcome{ruleID: candidate.Rule.ID}

	reply, err := c.oracle.Invoke(ctx, candidate.Rule, candidate.State)
	if err != nil {
		outcome.err = err
		return outcome
	}

	interpretation := oracle.Interpret(reply)
	switch interpretation.Kind {
	case oracle.KindNoAction:
		outcome.noAction = true
	case oracle.KindParseFailure:
		outcome.parseFailure = true
		outcome.diagnostic = interpretation.Diagnostic
	case oracle.KindAction:
		cmd := command.Synthesize(interpretation.Action, candidate.Rule)
		verdict := c.validator.Validate(cmd)
		outcome.verdict = &verdict
	}
	return outcome
}

func (c *Coordinator) recordTrigger(ruleID string) {
	if err := c.selector.RecordTrigger(ruleID); err != nil {
		c.logger.Warn("Failed to record rule trigger", "rule_id", ruleID, "error", err)
	}
}

func (c *Coordinator) audit(ctx context.Context, verdict command.Verdict) {
	if err := c.dispatcher.Audit(ctx, verdict); err != nil {
		c.recordError(err)
		c.logger.Warn("Audit record failed",
			"command_id", verdict.Command.ID,
			"status", verdict.Status,
			"error", err)
	}
}

// auditEviction reports queue evictions on the audit trail. It runs
// from inside the queue lock, so it must stay queue-free.
func (c *Coordinator) auditEviction(entry PendingCommand, cause string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.audit(ctx, command.Verdict{
		Command:  entry.Command,
		Decision: command.DecisionRejected,
		Status:   command.DecisionRejected.String(),
		Stage:    command.StageCritical,
		Reason:   "pending confirmation " + cause,
	})
}

func (c *Coordinator) recordError(err error) {
	c.errorCount.Add(1)
	c.lastErr.Store(err.Error())
}
