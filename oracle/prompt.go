package oracle

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/fuzzy"
	"github.com/c360/sembridge/rules"
)

// DefaultPromptTemplate is used when no override is configured. The
// reply contract it dictates is exactly what Interpret parses: one
// ACTION line or the bare NO_ACTION marker, nothing else.
const DefaultPromptTemplate = `You control smart home devices. Decide whether the automation rule below applies to the current sensor state.

Current state: {{.State}}

Rule: {{.Rule}}

If the rule applies right now, reply with exactly one line in this form:
ACTION: <device_id>, <command_type>[, <key>=<value> ...]

If the rule does not apply, reply with exactly:
NO_ACTION

Do not explain your decision.`

// PromptInput is the data a prompt template renders. Custom templates
// reference it as {{.State}} and {{.Rule}}.
type PromptInput struct {
	// State is the linguistic sensor state, one clause per sensor.
	State string
	// Rule is the rule text exactly as authored.
	Rule string
}

// PromptBuilder renders one prompt per candidate rule.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder parses text into a template, falling back to
// DefaultPromptTemplate when text is empty.
func NewPromptBuilder(text string) (*PromptBuilder, error) {
	if text == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: prompt template: %v", errors.ErrInvalidConfig, err),
			"oracle.PromptBuilder", "NewPromptBuilder", "template parse")
	}
	return &PromptBuilder{tmpl: tmpl}, nil
}

// Build renders the prompt for one rule against the current state. An
// empty state renders as an explicit "no sensor state available"
// clause rather than a blank, so the oracle is never shown a prompt
// that silently omits its context.
func (b *PromptBuilder) Build(rule rules.Rule, state []fuzzy.Description) (string, error) {
	var buf strings.Builder
	input := PromptInput{State: fuzzy.RenderState(state), Rule: rule.Text}
	if err := b.tmpl.Execute(&buf, input); err != nil {
		return "", errors.WrapInvalid(err, "oracle.PromptBuilder", "Build", "template execution")
	}
	return buf.String(), nil
}
