// Package command turns oracle decisions into validated, releasable
// device commands. The synthesizer stamps identity and provenance onto
// an action, the validator runs every command through a fixed pipeline
// of checks, and the resolver picks a single winner when several rules
// target the same device in one cycle.
package command

import (
	"fmt"
	"time"

	"github.com/c360/sembridge/errors"
)

// ActionSpec is the parsed payload of an oracle ACTION reply before any
// identity or provenance is attached.
type ActionSpec struct {
	DeviceID    string         `json:"device_id"`
	CommandType string         `json:"command_type"`
	Parameters  map[string]any `json:"parameters"`
}

// DeviceCommand is one actuation of one device, carrying the identity
// and provenance that the audit trail and downstream consumers rely on.
type DeviceCommand struct {
	ID                 string         `json:"command_id"`
	DeviceID           string         `json:"device_id"`
	CommandType        string         `json:"command_type"`
	Parameters         map[string]any `json:"parameters"`
	Timestamp          time.Time      `json:"timestamp"`
	SourceRuleID       string         `json:"source_rule_id"`
	SourceRulePriority int            `json:"source_rule_priority"`
}

// Validate rejects commands that are structurally unusable: the checks
// here gate entry into the validation pipeline, not device semantics.
func (c DeviceCommand) Validate() error {
	switch {
	case c.ID == "":
		return malformed("command id is empty")
	case c.DeviceID == "":
		return malformed("device id is empty")
	case c.CommandType == "":
		return malformed("command type is empty")
	case c.Parameters == nil:
		return malformed("parameters map is nil")
	case c.Timestamp.IsZero():
		return malformed("timestamp is zero")
	case c.SourceRuleID == "":
		return malformed("source rule id is empty")
	}
	return nil
}

func malformed(detail string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrMalformedCommand, detail),
		"command.DeviceCommand", "Validate", "structural check")
}

// Decision is the validator's (or resolver's) final word on a command.
type Decision int

const (
	// DecisionApproved means the command passed every check and may be
	// released to the output dispatcher.
	DecisionApproved Decision = iota
	// DecisionRejected means a check failed; Stage and Reason say which.
	DecisionRejected
	// DecisionPending means the command targets a critical device and
	// is parked awaiting explicit confirmation.
	DecisionPending
)

func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "approved"
	case DecisionRejected:
		return "rejected"
	case DecisionPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Verdict pairs a command with its decision. Stage names the check that
// rejected or parked it and Reason is the human-readable explanation;
// both are empty for approvals. Err carries the classified rejection
// error so callers can branch on the sentinel instead of message text.
type Verdict struct {
	Command  DeviceCommand `json:"command"`
	Decision Decision      `json:"-"`
	Status   string        `json:"status"`
	Stage    Stage         `json:"stage,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Err      error         `json:"-"`
}

// Approved reports whether the command cleared every check.
func (v Verdict) Approved() bool { return v.Decision == DecisionApproved }

// approve and park keep verdict construction in one place so Status
// always mirrors Decision. Rejections are built where the stage fails.
func approve(cmd DeviceCommand) Verdict {
	return Verdict{Command: cmd, Decision: DecisionApproved, Status: DecisionApproved.String()}
}

func park(cmd DeviceCommand, reason string) Verdict {
	return Verdict{
		Command:  cmd,
		Decision: DecisionPending,
		Status:   DecisionPending.String(),
		Stage:    StageCritical,
		Reason:   reason,
	}
}
