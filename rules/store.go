package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/c360/sembridge/errors"
)

// Store is the rule access contract the pipeline depends on. The core only
// reads enabled rules and writes trigger metadata back; rule management
// beyond that is the owning store's business.
type Store interface {
	// Enabled returns the enabled rules, sorted by rule id.
	Enabled() []Rule
	// RecordTrigger increments the rule's trigger count and sets its
	// last-triggered timestamp.
	RecordTrigger(id string, at time.Time) error
}

// MemoryStore is a mutex-guarded in-memory rule store. It backs both
// library use and the file-loaded production configuration; trigger
// metadata written here survives document reloads.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewMemoryStore builds a store from validated rules. Duplicate ids are
// configuration errors.
func NewMemoryStore(rules ...Rule) (*MemoryStore, error) {
	s := &MemoryStore{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		if err := s.Add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts a rule. A zero CreatedAt is stamped with the current time.
func (s *MemoryStore) Add(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"rules.MemoryStore", "Add", "rule validation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.rules[rule.ID]; dup {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrDuplicateRule, rule.ID),
			"rules.MemoryStore", "Add", "rule insertion")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	s.rules[rule.ID] = rule
	return nil
}

// Get returns a rule by id.
func (s *MemoryStore) Get(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

// Delete removes a rule by id.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrRuleNotFound, id),
			"rules.MemoryStore", "Delete", "rule removal")
	}
	delete(s.rules, id)
	return nil
}

// SetEnabled flips a rule's enabled flag.
func (s *MemoryStore) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrRuleNotFound, id),
			"rules.MemoryStore", "SetEnabled", "rule update")
	}
	r.Enabled = enabled
	s.rules[id] = r
	return nil
}

// All returns every rule, sorted by rule id.
func (s *MemoryStore) All() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled implements Store.
func (s *MemoryStore) Enabled() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordTrigger implements Store.
func (s *MemoryStore) RecordTrigger(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrRuleNotFound, id),
			"rules.MemoryStore", "RecordTrigger", "trigger write-back")
	}
	r.TriggerCount++
	triggered := at
	r.LastTriggered = &triggered
	s.rules[id] = r
	return nil
}

// ReplaceAll swaps the rule set in one step, for document reloads. Trigger
// metadata recorded at runtime wins over whatever the incoming records
// carry for rules that persist across the reload.
func (s *MemoryStore) ReplaceAll(rules []Rule) error {
	incoming := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"rules.MemoryStore", "ReplaceAll", "rule validation")
		}
		if _, dup := incoming[r.ID]; dup {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrDuplicateRule, r.ID),
				"rules.MemoryStore", "ReplaceAll", "rule validation")
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		incoming[r.ID] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.rules {
		r, kept := incoming[id]
		if !kept {
			continue
		}
		r.TriggerCount = existing.TriggerCount
		r.LastTriggered = existing.LastTriggered
		incoming[id] = r
	}
	s.rules = incoming
	return nil
}

// document is the on-disk shape of the rule document.
type document struct {
	Rules []Rule `json:"rules"`
}

// ParseDocument decodes a rule document of the form {"rules": [...]}.
// Schema validation of the raw document happens in the config package.
func ParseDocument(data []byte) ([]Rule, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "rules", "ParseDocument", "rule document decode")
	}
	for _, r := range doc.Rules {
		if err := r.Validate(); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"rules", "ParseDocument", "rule validation")
		}
	}
	return doc.Rules, nil
}
