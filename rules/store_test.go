package rules

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sembridge/errors"
)

func testRules() []Rule {
	return []Rule{
		{ID: "rule-ac", Text: "if hot, turn on ac", Priority: 80, Enabled: true, Tags: []string{"climate"}},
		{ID: "rule-heater", Text: "if cold, turn on heater", Priority: 60, Enabled: true, Tags: []string{"climate"}},
		{ID: "rule-night-lock", Text: "if night, lock the front door", Priority: 90, Enabled: false, Tags: []string{"security"}},
	}
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(testRules()...)
	require.NoError(t, err)
	return s
}

func TestNewMemoryStore(t *testing.T) {
	s := newTestStore(t)

	r, ok := s.Get("rule-ac")
	require.True(t, ok)
	assert.Equal(t, 80, r.Priority)
	assert.False(t, r.CreatedAt.IsZero(), "zero CreatedAt is stamped on insert")

	_, ok = s.Get("rule-unknown")
	assert.False(t, ok)
}

func TestMemoryStore_AddDuplicate(t *testing.T) {
	s := newTestStore(t)

	err := s.Add(Rule{ID: "rule-ac", Text: "duplicate"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateRule)
}

func TestMemoryStore_AddInvalid(t *testing.T) {
	s := newTestStore(t)

	assert.Error(t, s.Add(Rule{ID: "", Text: "no id"}))
	assert.Error(t, s.Add(Rule{ID: "rule-x", Text: ""}))
}

func TestMemoryStore_Enabled(t *testing.T) {
	s := newTestStore(t)

	enabled := s.Enabled()
	require.Len(t, enabled, 2, "disabled rules are excluded")
	assert.Equal(t, "rule-ac", enabled[0].ID, "sorted by rule id")
	assert.Equal(t, "rule-heater", enabled[1].ID)
}

func TestMemoryStore_SetEnabled(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetEnabled("rule-night-lock", true))
	assert.Len(t, s.Enabled(), 3)

	require.NoError(t, s.SetEnabled("rule-ac", false))
	assert.Len(t, s.Enabled(), 2)

	err := s.SetEnabled("rule-unknown", true)
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Delete("rule-ac"))
	_, ok := s.Get("rule-ac")
	assert.False(t, ok)

	err := s.Delete("rule-ac")
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestMemoryStore_RecordTrigger(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordTrigger("rule-ac", at))
	require.NoError(t, s.RecordTrigger("rule-ac", at.Add(time.Minute)))

	r, ok := s.Get("rule-ac")
	require.True(t, ok)
	assert.Equal(t, int64(2), r.TriggerCount)
	require.NotNil(t, r.LastTriggered)
	assert.Equal(t, at.Add(time.Minute), *r.LastTriggered)

	err := s.RecordTrigger("rule-unknown", at)
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestMemoryStore_ReplaceAll(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordTrigger("rule-ac", at))

	replacement := []Rule{
		{ID: "rule-ac", Text: "if hot, turn on ac", Priority: 85, Enabled: true},
		{ID: "rule-fan", Text: "if warm, start the fan", Priority: 40, Enabled: true},
	}
	require.NoError(t, s.ReplaceAll(replacement))

	all := s.All()
	require.Len(t, all, 2)

	r, ok := s.Get("rule-ac")
	require.True(t, ok)
	assert.Equal(t, 85, r.Priority, "incoming record fields win")
	assert.Equal(t, int64(1), r.TriggerCount, "runtime trigger metadata survives reload")
	require.NotNil(t, r.LastTriggered)

	_, ok = s.Get("rule-heater")
	assert.False(t, ok, "rules absent from the new document are dropped")
}

func TestMemoryStore_ReplaceAll_InvalidLeavesStoreIntact(t *testing.T) {
	s := newTestStore(t)

	err := s.ReplaceAll([]Rule{
		{ID: "rule-a", Text: "ok", Enabled: true},
		{ID: "rule-a", Text: "duplicate", Enabled: true},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateRule)

	assert.Len(t, s.All(), 3, "failed replace leaves the old set")
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.RecordTrigger("rule-ac", time.Now())
				_ = s.Enabled()
				_, _ = s.Get("rule-heater")
			}
		}()
	}
	wg.Wait()

	r, _ := s.Get("rule-ac")
	assert.Equal(t, int64(500), r.TriggerCount)
}

func TestParseDocument(t *testing.T) {
	data := []byte(`{
		"rules": [
			{
				"rule_id": "rule-ac",
				"rule_text": "if hot, turn on ac",
				"priority": 80,
				"enabled": true,
				"created_timestamp": "2026-01-15T08:00:00Z",
				"trigger_count": 3,
				"tags": ["climate"]
			}
		]
	}`)

	rules, err := ParseDocument(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "rule-ac", rules[0].ID)
	assert.Equal(t, int64(3), rules[0].TriggerCount)
	assert.Equal(t, []string{"climate"}, rules[0].Tags)
}

func TestParseDocument_Invalid(t *testing.T) {
	_, err := ParseDocument([]byte(`{"rules": [`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`{"rules": [{"rule_id": "", "rule_text": "x"}]}`))
	assert.Error(t, err)
}
