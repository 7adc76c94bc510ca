// Package oracle consults an OpenAI-compatible inference service to
// decide, one rule at a time, whether an automation rule applies to the
// current linguistic sensor state, and parses the service's free-text
// reply into a closed verdict the rest of the pipeline can trust.
package oracle

import (
	"context"

	"github.com/c360/sembridge/fuzzy"
	"github.com/c360/sembridge/rules"
)

// InferenceParams are the sampling parameters sent with every
// consultation. TopK has no field in the OpenAI wire format and is
// never serialized; it is carried so configurations written for local
// runtimes survive a round trip.
type InferenceParams struct {
	Temperature   float32 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	TopP          float32 `json:"top_p"`
	TopK          int     `json:"top_k,omitempty"`
	RepeatPenalty float32 `json:"repeat_penalty"`
}

// DefaultInferenceParams favors short, deterministic replies. The
// contract asks for a single marker line, so a low temperature and a
// tight token budget are the right defaults.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		Temperature:   0.1,
		MaxTokens:     256,
		TopP:          0.9,
		TopK:          40,
		RepeatPenalty: 1.1,
	}
}

// Client is the consultation contract the evaluation coordinator
// depends on. Implementations must be safe for concurrent use; the
// coordinator fans rule evaluations out across a worker pool.
type Client interface {
	// Invoke builds one prompt for one candidate rule against the
	// current state and returns the oracle's raw reply text. Rules are
	// never batched into a shared prompt. Failures are classified:
	// unreachable services, per-call timeouts, and unavailable models
	// each unwrap to their own sentinel.
	Invoke(ctx context.Context, rule rules.Rule, state []fuzzy.Description) (string, error)

	// Models returns the model names the service reports as available.
	Models(ctx context.Context) ([]string, error)

	// Healthy reports whether the service answers a liveness probe.
	Healthy(ctx context.Context) bool
}
