package command

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/c360/sembridge/errors"
)

// Resolve picks one winner per device when several rules produced a
// command for the same device in one cycle. The highest source-rule
// priority wins; an equal priority resolves to the lexicographically
// smallest source rule ID, which is deterministic because rule IDs are
// unique. Losers become rejected verdicts with a superseded reason so
// the audit trail shows why they never ran.
//
// The returned slice preserves input order, with losing verdicts
// replaced in place; rejected and single-member groups pass through
// untouched. A group whose top candidates tie on both priority and rule
// ID cannot pick a winner: every member is rejected and the device is
// reported in the returned error. The error never aborts a cycle, the
// other groups are still resolved.
func Resolve(verdicts []Verdict) ([]Verdict, error) {
	resolved := make([]Verdict, len(verdicts))
	copy(resolved, verdicts)

	groups := make(map[string][]int)
	for i, verdict := range resolved {
		if verdict.Decision == DecisionRejected {
			continue
		}
		deviceID := verdict.Command.DeviceID
		groups[deviceID] = append(groups[deviceID], i)
	}

	deviceIDs := make([]string, 0, len(groups))
	for deviceID := range groups {
		deviceIDs = append(deviceIDs, deviceID)
	}
	sort.Strings(deviceIDs)

	var unresolved []error
	for _, deviceID := range deviceIDs {
		group := groups[deviceID]
		if len(group) < 2 {
			continue
		}

		winner := group[0]
		for _, idx := range group[1:] {
			if beats(resolved[idx].Command, resolved[winner].Command) {
				winner = idx
			}
		}

		// A second candidate matching the winner on both priority and
		// rule ID makes the pick arbitrary; reject the whole group.
		best := resolved[winner].Command
		tied := 0
		for _, idx := range group {
			cmd := resolved[idx].Command
			if cmd.SourceRulePriority == best.SourceRulePriority && cmd.SourceRuleID == best.SourceRuleID {
				tied++
			}
		}
		if tied > 1 {
			cause := fmt.Errorf("%w: device %q has %d commands from rule %q at priority %d",
				errors.ErrConflictUnresolved, deviceID, tied, best.SourceRuleID, best.SourceRulePriority)
			classified := errors.WrapInvalid(cause, "command.Resolve", "Resolve", "conflict resolution")
			for _, idx := range group {
				resolved[idx] = Verdict{
					Command:  resolved[idx].Command,
					Decision: DecisionRejected,
					Status:   DecisionRejected.String(),
					Stage:    StageConflict,
					Reason:   cause.Error(),
					Err:      classified,
				}
			}
			unresolved = append(unresolved, cause)
			continue
		}

		for _, idx := range group {
			if idx == winner {
				continue
			}
			resolved[idx] = supersede(resolved[idx], best)
		}
	}

	return resolved, stderrors.Join(unresolved...)
}

// beats reports whether a should win over b.
func beats(a, b DeviceCommand) bool {
	if a.SourceRulePriority != b.SourceRulePriority {
		return a.SourceRulePriority > b.SourceRulePriority
	}
	return a.SourceRuleID < b.SourceRuleID
}

func supersede(loser Verdict, winner DeviceCommand) Verdict {
	return Verdict{
		Command:  loser.Command,
		Decision: DecisionRejected,
		Status:   DecisionRejected.String(),
		Stage:    StageConflict,
		Reason: fmt.Sprintf("superseded by rule %q (priority %d)",
			winner.SourceRuleID, winner.SourceRulePriority),
	}
}
