package rules

import (
	"sort"
	"time"

	"github.com/c360/sembridge/fuzzy"
)

// Candidate pairs one enabled rule with the linguistic state it will be
// evaluated against. Every enabled rule becomes a candidate; deciding
// whether the rule's condition actually holds is the oracle's job.
type Candidate struct {
	Rule  Rule
	State []fuzzy.Description
}

// Selector produces evaluation candidates from the rule store.
type Selector struct {
	store Store
}

// NewSelector builds a selector over the store.
func NewSelector(store Store) *Selector {
	return &Selector{store: store}
}

// Select returns every enabled rule paired with the current state.
func (s *Selector) Select(state []fuzzy.Description) []Candidate {
	enabled := s.store.Enabled()
	candidates := make([]Candidate, 0, len(enabled))
	for _, r := range enabled {
		candidates = append(candidates, Candidate{Rule: r, State: state})
	}
	return candidates
}

// SelectTagged narrows Select to rules carrying at least one of the given
// tags. With no tags it behaves exactly like Select.
func (s *Selector) SelectTagged(state []fuzzy.Description, tags ...string) []Candidate {
	if len(tags) == 0 {
		return s.Select(state)
	}
	enabled := s.store.Enabled()
	candidates := make([]Candidate, 0, len(enabled))
	for _, r := range enabled {
		for _, tag := range tags {
			if r.HasTag(tag) {
				candidates = append(candidates, Candidate{Rule: r, State: state})
				break
			}
		}
	}
	return candidates
}

// ByPriority returns the enabled rules ordered by descending priority,
// equal priorities by ascending rule id. This is the resolver's view of
// the rule set and the natural display order.
func (s *Selector) ByPriority() []Rule {
	enabled := s.store.Enabled()
	sort.Slice(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].ID < enabled[j].ID
	})
	return enabled
}

// RecordTrigger writes trigger metadata back through the store after a
// rule's command wins a cycle.
func (s *Selector) RecordTrigger(ruleID string) error {
	return s.store.RecordTrigger(ruleID, time.Now())
}
