package models

import "testing"

func TestResolutionTier_Valid(t *testing.T) {
	tests := []struct {
		name string
		tier ResolutionTier
		want bool
	}{
		{"structured is valid", TierStructured, true},
		{"guided-prompt is valid", TierGuidedPrompt, true},
		{"rule is valid", TierRule, true},
		{"empty string is invalid", ResolutionTier(""), false},
		{"unknown tier is invalid", ResolutionTier("llm"), false},
		{"underscore variant is invalid", ResolutionTier("guided_prompt"), false},
		{"uppercase is invalid", ResolutionTier("RULE"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tier.Valid(); got != tt.want {
				t.Errorf("ResolutionTier(%q).Valid() = %v, want %v", tt.tier, got, tt.want)
			}
		})
	}
}
