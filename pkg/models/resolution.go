package models

// ResolutionTier identifies which resolver strategy produced an intent resolution.
type ResolutionTier string

const (
	// TierStructured is the schema-constrained function-calling strategy.
	TierStructured ResolutionTier = "structured"
	// TierGuidedPrompt is the few-shot natural-language prompt strategy.
	TierGuidedPrompt ResolutionTier = "guided-prompt"
	// TierRule is the deterministic keyword-rule strategy. It is the only
	// tier that never requires an external call.
	TierRule ResolutionTier = "rule"
)

// Valid returns true if the tier is a known value.
func (t ResolutionTier) Valid() bool {
	switch t {
	case TierStructured, TierGuidedPrompt, TierRule:
		return true
	default:
		return false
	}
}

// IntentResolution is the result of resolving one user turn into an intent
// plus a validated parameter set.
type IntentResolution struct {
	// Intent is the resolved intent name.
	Intent string `json:"intent"`
	// Confidence is the resolver's confidence in [0, 1]. The terminal
	// fallback (plain conversation, nothing matched) carries confidence 0.
	Confidence float64 `json:"confidence"`
	// Params is the parameter set validated against the intent's schema.
	Params map[string]any `json:"params"`
	// Tier names the strategy that produced this resolution.
	Tier ResolutionTier `json:"tier"`
}
