package models

import "time"

// TurnState represents the current phase of a turn's pipeline.
type TurnState string

const (
	// TurnResolvingIntent is the initial state: resolving intent and params.
	TurnResolvingIntent TurnState = "resolving_intent"
	// TurnSelectingCapabilities maps the resolved intent to capabilities.
	TurnSelectingCapabilities TurnState = "selecting_capabilities"
	// TurnScheduling executes the capability batches.
	TurnScheduling TurnState = "scheduling"
	// TurnAssemblingReply composes the final reply text.
	TurnAssemblingReply TurnState = "assembling_reply"
	// TurnDone is the terminal success state.
	TurnDone TurnState = "done"
	// TurnFailed is the terminal state for unrecoverable configuration
	// errors. Individual capability failures never reach it.
	TurnFailed TurnState = "failed"
)

// Valid returns true if the state is a known value.
func (s TurnState) Valid() bool {
	switch s {
	case TurnResolvingIntent, TurnSelectingCapabilities, TurnScheduling,
		TurnAssemblingReply, TurnDone, TurnFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for states with no outgoing transitions.
func (s TurnState) Terminal() bool {
	return s == TurnDone || s == TurnFailed
}

// Turn is one user-message-to-reply cycle within a session. It is owned by
// the turn runner for its lifetime and immutable once the reply is emitted.
type Turn struct {
	// ID is the unique identifier for this turn.
	ID string `json:"id"`
	// UserText is the raw user message.
	UserText string `json:"user_text"`
	// Timestamp is when the turn was created.
	Timestamp time.Time `json:"timestamp"`
	// State is the turn's pipeline state.
	State TurnState `json:"state"`
	// Resolution is the resolved intent, confidence, and parameter set.
	Resolution IntentResolution `json:"resolution"`
	// Outcomes lists per-capability results in selection order.
	Outcomes []CapabilityOutcome `json:"outcomes,omitempty"`
	// Reply is the final assembled reply text.
	Reply string `json:"reply"`
}
