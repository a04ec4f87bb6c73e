package models

import "testing"

func TestTurnState_Valid(t *testing.T) {
	tests := []struct {
		name  string
		state TurnState
		want  bool
	}{
		{"resolving_intent is valid", TurnResolvingIntent, true},
		{"selecting_capabilities is valid", TurnSelectingCapabilities, true},
		{"scheduling is valid", TurnScheduling, true},
		{"assembling_reply is valid", TurnAssemblingReply, true},
		{"done is valid", TurnDone, true},
		{"failed is valid", TurnFailed, true},
		{"empty string is invalid", TurnState(""), false},
		{"unknown state is invalid", TurnState("waiting"), false},
		{"uppercase is invalid", TurnState("DONE"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("TurnState(%q).Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestTurnState_Terminal(t *testing.T) {
	tests := []struct {
		name  string
		state TurnState
		want  bool
	}{
		{"done is terminal", TurnDone, true},
		{"failed is terminal", TurnFailed, true},
		{"resolving_intent is not terminal", TurnResolvingIntent, false},
		{"selecting_capabilities is not terminal", TurnSelectingCapabilities, false},
		{"scheduling is not terminal", TurnScheduling, false},
		{"assembling_reply is not terminal", TurnAssemblingReply, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.want {
				t.Errorf("TurnState(%q).Terminal() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}
