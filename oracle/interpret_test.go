package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_Action(t *testing.T) {
	result := Interpret("ACTION: ac_living_room, set_temperature, target=22.5, mode=cool")

	require.Equal(t, KindAction, result.Kind)
	assert.Equal(t, "ac_living_room", result.Action.DeviceID)
	assert.Equal(t, "set_temperature", result.Action.CommandType)
	assert.Equal(t, map[string]any{"target": 22.5, "mode": "cool"}, result.Action.Parameters)
	assert.Empty(t, result.Diagnostic)
}

func TestInterpret_ActionWithoutParameters(t *testing.T) {
	result := Interpret("ACTION: fan_bedroom, turn_on")

	require.Equal(t, KindAction, result.Kind)
	assert.Equal(t, "fan_bedroom", result.Action.DeviceID)
	assert.Equal(t, "turn_on", result.Action.CommandType)
	require.NotNil(t, result.Action.Parameters)
	assert.Empty(t, result.Action.Parameters)
}

func TestInterpret_ActionSurroundedByProse(t *testing.T) {
	reply := "The living room is hot.\n\nACTION: ac_living_room, set_temperature, target=22\n\nThat should cool it down."
	result := Interpret(reply)

	require.Equal(t, KindAction, result.Kind)
	assert.Equal(t, "ac_living_room", result.Action.DeviceID)
	assert.Equal(t, map[string]any{"target": 22.0}, result.Action.Parameters)
}

func TestInterpret_NoAction(t *testing.T) {
	for _, reply := range []string{
		"NO_ACTION",
		"NO_ACTION.",
		"  NO_ACTION  ",
		"```\nNO_ACTION\n```",
		"`NO_ACTION`",
		"The rule does not apply.\nNO_ACTION",
	} {
		result := Interpret(reply)
		assert.Equal(t, KindNoAction, result.Kind, "reply: %q", reply)
	}
}

func TestInterpret_ValueCoercion(t *testing.T) {
	result := Interpret("ACTION: heater_bedroom, configure, enabled=true, level=3, label=eco")

	require.Equal(t, KindAction, result.Kind)
	assert.Equal(t, true, result.Action.Parameters["enabled"])
	assert.Equal(t, 3.0, result.Action.Parameters["level"])
	assert.Equal(t, "eco", result.Action.Parameters["label"])
}

func TestInterpret_ParseFailures(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		diagnostic string
	}{
		{
			name:       "empty reply",
			reply:      "",
			diagnostic: "no ACTION or NO_ACTION marker",
		},
		{
			name:       "prose without markers",
			reply:      "I think you should cool the living room down a little.",
			diagnostic: "no ACTION or NO_ACTION marker",
		},
		{
			name:       "both markers",
			reply:      "ACTION: ac_living_room, set_temperature, target=22\nNO_ACTION",
			diagnostic: "both ACTION and NO_ACTION",
		},
		{
			name:       "multiple action lines",
			reply:      "ACTION: ac_living_room, set_temperature, target=22\nACTION: fan_bedroom, turn_on",
			diagnostic: "multiple ACTION lines",
		},
		{
			name:       "missing command type",
			reply:      "ACTION: ac_living_room",
			diagnostic: "device id and a command type",
		},
		{
			name:       "empty device id",
			reply:      "ACTION: , set_temperature",
			diagnostic: "device id and a command type",
		},
		{
			name:       "parameter without equals",
			reply:      "ACTION: ac_living_room, set_temperature, target",
			diagnostic: `parameter "target" is not key=value`,
		},
		{
			name:       "parameter with empty key",
			reply:      "ACTION: ac_living_room, set_temperature, =22",
			diagnostic: "is not key=value",
		},
		{
			name:       "duplicate parameter",
			reply:      "ACTION: ac_living_room, set_temperature, target=22, target=24",
			diagnostic: `duplicate parameter "target"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Interpret(tt.reply)
			require.Equal(t, KindParseFailure, result.Kind)
			assert.Contains(t, result.Diagnostic, tt.diagnostic)
			assert.Equal(t, tt.reply, result.Raw)
		})
	}
}

func TestInterpret_PreservesRaw(t *testing.T) {
	reply := "Some reasoning.\nACTION: ac_living_room, turn_off"
	result := Interpret(reply)

	require.Equal(t, KindAction, result.Kind)
	assert.Equal(t, reply, result.Raw)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "action", KindAction.String())
	assert.Equal(t, "no_action", KindNoAction.String())
	assert.Equal(t, "parse_failure", KindParseFailure.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
