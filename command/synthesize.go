package command

import (
	"time"

	"github.com/google/uuid"

	"github.com/c360/sembridge/rules"
)

// Synthesize stamps identity and provenance onto an oracle action. The
// device id, command type, and parameters are carried verbatim; no
// capability or range checks happen here, that is the validator's job.
func Synthesize(spec ActionSpec, rule rules.Rule) DeviceCommand {
	return SynthesizeAt(spec, rule, time.Now().UTC())
}

// SynthesizeAt is Synthesize with an explicit timestamp, for replay and
// audit tooling.
func SynthesizeAt(spec ActionSpec, rule rules.Rule, at time.Time) DeviceCommand {
	params := make(map[string]any, len(spec.Parameters))
	for k, v := range spec.Parameters {
		params[k] = v
	}
	return DeviceCommand{
		ID:                 uuid.NewString(),
		DeviceID:           spec.DeviceID,
		CommandType:        spec.CommandType,
		Parameters:         params,
		Timestamp:          at,
		SourceRuleID:       rule.ID,
		SourceRulePriority: rule.Priority,
	}
}
