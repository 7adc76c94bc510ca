package fuzzy

import (
	"fmt"
	"strings"
)

// Description is the linguistic rendering of one sensor's fuzzified state.
// Descriptions are ephemeral: rebuilt every cycle, never stored.
type Description struct {
	SensorID   string `json:"sensor_id"`
	SensorType string `json:"sensor_type"`
	Text       string `json:"text"`
	Result     Result `json:"result"`
}

// Describe renders a fuzzification result as a human-readable description
// for prompts, logs, and display.
func Describe(sensorID string, result Result) Description {
	return Description{
		SensorID:   sensorID,
		SensorType: result.SensorType,
		Text:       renderText(result),
		Result:     result,
	}
}

// RenderState joins descriptions into the single state line embedded in
// oracle prompts, e.g. "temperature is hot (0.85); humidity is comfortable
// (0.60)".
func RenderState(descriptions []Description) string {
	if len(descriptions) == 0 {
		return "no sensor state available"
	}
	parts := make([]string, len(descriptions))
	for i, d := range descriptions {
		parts[i] = d.Text
	}
	return strings.Join(parts, "; ")
}

func renderText(result Result) string {
	if len(result.Terms) == 0 {
		return fmt.Sprintf("%s (%g) matches no term above the confidence threshold",
			result.SensorType, result.RawValue)
	}
	parts := make([]string, len(result.Terms))
	for i, td := range result.Terms {
		parts[i] = fmt.Sprintf("%s (%.2f)", td.Term, td.Degree)
	}
	return fmt.Sprintf("%s is %s", result.SensorType, strings.Join(parts, ", "))
}
