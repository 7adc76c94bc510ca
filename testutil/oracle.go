package testutil

import (
	"context"
	"sync"

	"github.com/c360/sembridge/fuzzy"
	"github.com/c360/sembridge/oracle"
	"github.com/c360/sembridge/rules"
)

// StubOracle is an in-memory oracle.Client. Replies are scripted per
// rule id and default to NO_ACTION, so unscripted rules stay inert and
// a test only describes the behavior it cares about. Thread-safe; the
// coordinator invokes it from a worker pool.
type StubOracle struct {
	mu           sync.Mutex
	replies      map[string]string
	errs         map[string]error
	calls        map[string]int
	states       map[string][]fuzzy.Description
	models       []string
	healthy      bool
	defaultReply string
}

var _ oracle.Client = (*StubOracle)(nil)

// NewStubOracle creates a stub that reports one available model and a
// passing health probe.
func NewStubOracle() *StubOracle {
	return &StubOracle{
		replies:      make(map[string]string),
		errs:         make(map[string]error),
		calls:        make(map[string]int),
		states:       make(map[string][]fuzzy.Description),
		models:       []string{"llama3.2"},
		healthy:      true,
		defaultReply: "NO_ACTION",
	}
}

// Script sets the raw reply returned for a rule id. Use the contract
// forms the interpreter accepts:
//
//	o.Script("rule-ac", "ACTION: ac_living_room, set_temperature, temperature=22")
//	o.Script("rule-heater", "NO_ACTION")
func (o *StubOracle) Script(ruleID, reply string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[ruleID] = reply
}

// Fail makes consultations for a rule id return an error.
func (o *StubOracle) Fail(ruleID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[ruleID] = err
}

// SetDefaultReply overrides the reply for unscripted rules.
func (o *StubOracle) SetDefaultReply(reply string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.defaultReply = reply
}

// SetModels overrides the model list Models reports.
func (o *StubOracle) SetModels(models ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.models = append([]string(nil), models...)
}

// SetHealthy sets the health probe result.
func (o *StubOracle) SetHealthy(healthy bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.healthy = healthy
}

// CallCount returns how many times a rule id was consulted.
func (o *StubOracle) CallCount(ruleID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[ruleID]
}

// TotalCalls returns the consultation count across all rules.
func (o *StubOracle) TotalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.calls {
		total += n
	}
	return total
}

// LastState returns the linguistic state passed with the most recent
// consultation of a rule id, or nil if it was never consulted.
func (o *StubOracle) LastState(ruleID string) []fuzzy.Description {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[ruleID]
}

// Invoke returns the scripted reply or error for the rule. Context
// cancellation wins over the script, matching the real adapter.
func (o *StubOracle) Invoke(ctx context.Context, rule rules.Rule, state []fuzzy.Description) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls[rule.ID]++
	o.states[rule.ID] = append([]fuzzy.Description(nil), state...)

	if err := o.errs[rule.ID]; err != nil {
		return "", err
	}
	if reply, ok := o.replies[rule.ID]; ok {
		return reply, nil
	}
	return o.defaultReply, nil
}

// Models returns the configured model list.
func (o *StubOracle) Models(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.models...), nil
}

// Healthy returns the configured probe result.
func (o *StubOracle) Healthy(context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.healthy
}
