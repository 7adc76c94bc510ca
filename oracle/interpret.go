package oracle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/sembridge/command"
)

// Kind discriminates the interpreter's verdict on a raw oracle reply.
type Kind int

const (
	// KindAction means the reply named a device actuation.
	KindAction Kind = iota
	// KindNoAction means the oracle explicitly declined to act.
	KindNoAction
	// KindParseFailure means the reply matched neither contract form.
	KindParseFailure
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindNoAction:
		return "no_action"
	case KindParseFailure:
		return "parse_failure"
	default:
		return "unknown"
	}
}

// Interpretation is the interpreter's verdict on one reply. Action is
// meaningful only when Kind is KindAction; Diagnostic only when Kind is
// KindParseFailure. Raw always preserves the reply for audit records.
type Interpretation struct {
	Kind       Kind
	Action     command.ActionSpec
	Diagnostic string
	Raw        string
}

const (
	actionMarker   = "ACTION:"
	noActionMarker = "NO_ACTION"
)

// Interpret parses a raw oracle reply into the closed verdict set. A
// reply counts as an action only when exactly one ACTION line appears
// and no NO_ACTION marker contradicts it. Everything that fails the
// contract becomes a parse failure, never a guessed command: an
// unparsable reply must not actuate a device.
func Interpret(raw string) Interpretation {
	var (
		actionLines []string
		sawNoAction bool
	)
	for _, rawLine := range strings.Split(raw, "\n") {
		// Chatty models wrap the marker in code fences or backticks.
		line := strings.Trim(strings.TrimSpace(rawLine), "`")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, actionMarker) {
			actionLines = append(actionLines, strings.TrimSpace(strings.TrimPrefix(line, actionMarker)))
			continue
		}
		if line == noActionMarker || line == noActionMarker+"." {
			sawNoAction = true
		}
	}

	switch {
	case len(actionLines) > 1:
		return parseFailure(raw, "multiple ACTION lines")
	case len(actionLines) == 1 && sawNoAction:
		return parseFailure(raw, "reply contains both ACTION and NO_ACTION markers")
	case len(actionLines) == 0 && !sawNoAction:
		return parseFailure(raw, "no ACTION or NO_ACTION marker found")
	case len(actionLines) == 0:
		return Interpretation{Kind: KindNoAction, Raw: raw}
	}

	spec, diagnostic := parseActionPayload(actionLines[0])
	if diagnostic != "" {
		return parseFailure(raw, diagnostic)
	}
	return Interpretation{Kind: KindAction, Action: spec, Raw: raw}
}

func parseFailure(raw, diagnostic string) Interpretation {
	return Interpretation{Kind: KindParseFailure, Diagnostic: diagnostic, Raw: raw}
}

// parseActionPayload splits "device_id, command_type[, key=value ...]".
// The returned diagnostic is empty on success.
func parseActionPayload(payload string) (command.ActionSpec, string) {
	fields := strings.Split(payload, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return command.ActionSpec{}, "ACTION line needs a device id and a command type"
	}

	spec := command.ActionSpec{
		DeviceID:    fields[0],
		CommandType: fields[1],
		Parameters:  make(map[string]any, len(fields)-2),
	}
	for _, field := range fields[2:] {
		key, value, found := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return command.ActionSpec{}, fmt.Sprintf("parameter %q is not key=value", field)
		}
		if _, exists := spec.Parameters[key]; exists {
			return command.ActionSpec{}, fmt.Sprintf("duplicate parameter %q", key)
		}
		spec.Parameters[key] = coerceValue(strings.TrimSpace(value))
	}
	return spec, ""
}

// coerceValue keeps parameter types useful downstream: numbers become
// float64, booleans become bool, everything else stays a string.
func coerceValue(s string) any {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
