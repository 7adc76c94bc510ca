// Package rules holds the natural-language rule records the oracle
// evaluates, the store contract the pipeline reads them through, and the
// candidate selector. Rule text is opaque here: condition matching against
// the linguistic state is delegated entirely to the oracle, so the
// selector's only filtering duties are the enabled flag and optional tags.
package rules

import (
	"fmt"
	"time"
)

// Rule is one natural-language automation rule. Priority orders conflict
// resolution (higher wins); trigger metadata is written back through the
// Store after a rule's command is released.
type Rule struct {
	ID            string     `json:"rule_id"`
	Text          string     `json:"rule_text"`
	Priority      int        `json:"priority"`
	Enabled       bool       `json:"enabled"`
	CreatedAt     time.Time  `json:"created_timestamp"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	TriggerCount  int64      `json:"trigger_count"`
	Tags          []string   `json:"tags,omitempty"`
}

// Validate reports malformed rule records.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule_id is empty")
	}
	if r.Text == "" {
		return fmt.Errorf("rule %q has empty rule_text", r.ID)
	}
	return nil
}

// HasTag reports whether the rule carries the tag.
func (r Rule) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
