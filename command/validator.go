package command

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sembridge/devices"
	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/metric"
)

// Stage names the validation check that decided a verdict. The conflict
// stage is produced by the resolver, not the validator.
type Stage string

const (
	StageStructural Stage = "structural"
	StageDevice     Stage = "device"
	StageCapability Stage = "capability"
	StageParameters Stage = "parameters"
	StageWhitelist  Stage = "whitelist"
	StageRateLimit  Stage = "rate_limit"
	StageCritical   Stage = "critical"
	StageConflict   Stage = "conflict"
)

// ValidatorConfig configures the command validator.
type ValidatorConfig struct {
	// Registry resolves device ids to capability descriptors.
	Registry devices.Registry

	// AllowedCommands is the global safety whitelist. A command type
	// absent from it is rejected, so an empty whitelist rejects every
	// command.
	AllowedCommands []string

	// RateLimit caps commands per device inside the trailing window.
	// Default 60.
	RateLimit int

	// RateWindow is the trailing window width. Default one minute.
	RateWindow time.Duration

	// Logger for verdict diagnostics (optional).
	Logger *slog.Logger

	// Metrics receives verdict counters (optional).
	Metrics *metric.MetricsRegistry
}

// Validator runs synthesized commands through a fixed pipeline of
// checks. The whitelist copy is immutable after construction; runtime
// whitelist changes build a new Validator. Safe for concurrent use.
type Validator struct {
	registry devices.Registry
	allowed  map[string]struct{}
	limiter  *windowLimiter
	logger   *slog.Logger
	metrics  *validatorMetrics
	now      func() time.Time
}

type validatorMetrics struct {
	verdicts *prometheus.CounterVec
}

// NewValidator validates cfg and builds the validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.Registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: device registry is required", errors.ErrInvalidConfig),
			"command.Validator", "NewValidator", "config validation")
	}
	if cfg.RateLimit < 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: rate limit cannot be negative", errors.ErrInvalidConfig),
			"command.Validator", "NewValidator", "config validation")
	}

	limit := cfg.RateLimit
	if limit == 0 {
		limit = 60
	}
	window := cfg.RateWindow
	if window == 0 {
		window = time.Minute
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedCommands))
	for _, name := range cfg.AllowedCommands {
		allowed[name] = struct{}{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "validator")
	}

	v := &Validator{
		registry: cfg.Registry,
		allowed:  allowed,
		limiter:  newWindowLimiter(window, limit),
		logger:   logger,
		now:      time.Now,
	}
	if cfg.Metrics != nil {
		v.initializeMetrics(cfg.Metrics)
	}
	return v, nil
}

func (v *Validator) initializeMetrics(registry *metric.MetricsRegistry) {
	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "sembridge",
		Subsystem:   "validator",
		Name:        "verdicts_total",
		ConstLabels: prometheus.Labels{"component": "validator"},
		Help:        "Validation verdicts by decision and stage",
	}, []string{"decision", "stage"})

	if err := registry.RegisterCounterVec("validator", "verdicts_total", verdicts); err != nil {
		return
	}
	v.metrics = &validatorMetrics{verdicts: verdicts}
}

// Validate runs the stages in order; the first failing stage fixes the
// verdict. Critical devices clear every check but park as pending
// instead of approving.
func (v *Validator) Validate(cmd DeviceCommand) Verdict {
	verdict := v.run(cmd)

	if v.metrics != nil {
		v.metrics.verdicts.WithLabelValues(verdict.Status, string(verdict.Stage)).Inc()
	}
	switch verdict.Decision {
	case DecisionRejected:
		v.logger.Warn("Command rejected",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"stage", string(verdict.Stage),
			"reason", verdict.Reason)
	case DecisionPending:
		v.logger.Info("Command parked for confirmation",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID)
	default:
		v.logger.Debug("Command approved",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"command_type", cmd.CommandType)
	}
	return verdict
}

func (v *Validator) run(cmd DeviceCommand) Verdict {
	// 1. structural
	if err := cmd.Validate(); err != nil {
		return rejectClassified(cmd, StageStructural, err)
	}

	// 2. device existence
	descriptor, ok := v.registry.Lookup(cmd.DeviceID)
	if !ok {
		return v.reject(cmd, StageDevice,
			fmt.Errorf("%w: %q", errors.ErrDeviceNotFound, cmd.DeviceID))
	}

	// 3. capability match
	if !descriptor.Supports(cmd.CommandType) {
		return v.reject(cmd, StageCapability,
			fmt.Errorf("%w: device %q does not support %q",
				errors.ErrUnsupportedCommand, cmd.DeviceID, cmd.CommandType))
	}

	// 4. parameter constraints, in sorted key order so the first
	// reported violation is deterministic
	names := make([]string, 0, len(cmd.Parameters))
	for name := range cmd.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		constraint, declared := descriptor.Constraint(name)
		if !declared {
			continue
		}
		if err := constraint.Check(cmd.Parameters[name]); err != nil {
			return v.reject(cmd, StageParameters,
				fmt.Errorf("%w: parameter %q: %v",
					errors.ErrParameterOutOfRange, name, err))
		}
	}

	// 5. safety whitelist
	if _, ok := v.allowed[cmd.CommandType]; !ok {
		return v.reject(cmd, StageWhitelist,
			fmt.Errorf("%w: command type %q", errors.ErrNotWhitelisted, cmd.CommandType))
	}

	// 6. rate limit
	if !v.limiter.Allow(cmd.DeviceID, v.now()) {
		return v.reject(cmd, StageRateLimit,
			fmt.Errorf("%w: device %q exceeded %d commands per %s",
				errors.ErrRateLimited, cmd.DeviceID, v.limiter.limit, v.limiter.window))
	}

	// 7. critical-device routing
	if descriptor.Critical {
		return park(cmd, fmt.Sprintf("device %q is critical, awaiting confirmation", cmd.DeviceID))
	}

	return approve(cmd)
}

// reject wraps the stage error in the invalid classification; safety
// rejections are configuration or contract violations, never retried.
func (v *Validator) reject(cmd DeviceCommand, stage Stage, cause error) Verdict {
	classified := errors.WrapInvalid(cause, "command.Validator", "Validate", string(stage)+" check")
	return Verdict{
		Command:  cmd,
		Decision: DecisionRejected,
		Status:   DecisionRejected.String(),
		Stage:    stage,
		Reason:   cause.Error(),
		Err:      classified,
	}
}

// rejectClassified keeps an already classified error as-is.
func rejectClassified(cmd DeviceCommand, stage Stage, err error) Verdict {
	return Verdict{
		Command:  cmd,
		Decision: DecisionRejected,
		Status:   DecisionRejected.String(),
		Stage:    stage,
		Reason:   err.Error(),
		Err:      err,
	}
}
