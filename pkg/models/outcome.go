package models

import "time"

// OutcomeStatus represents the terminal state of one capability invocation.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the capability returned a result.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeFailed indicates the capability's own invocation failed.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeTimedOut indicates the invocation exceeded its per-task timeout.
	OutcomeTimedOut OutcomeStatus = "timed_out"
	// OutcomeSkipped indicates a declared dependency did not succeed, so the
	// capability was never invoked.
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeSuccess, OutcomeFailed, OutcomeTimedOut, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// InvocationResult is the payload a capability returns on success.
type InvocationResult struct {
	// Summary is a one-line human-readable description used when the
	// final reply is assembled.
	Summary string `json:"summary"`
	// Data is the structured result, if any.
	Data any `json:"data,omitempty"`
	// StateUpdates holds session state the capability wants persisted.
	// The turn runner merges these into the session only after the whole
	// turn completes; capabilities never write shared state directly.
	StateUpdates map[string]any `json:"state_updates,omitempty"`
}

// CapabilityOutcome is the terminal result record for one capability
// invocation within a turn.
type CapabilityOutcome struct {
	// Capability is the capability name.
	Capability string `json:"capability"`
	// Status is the terminal status of the invocation.
	Status OutcomeStatus `json:"status"`
	// Result is the success payload, nil unless Status is success.
	Result *InvocationResult `json:"result,omitempty"`
	// Error describes the failure, timeout, or unmet dependency.
	Error string `json:"error,omitempty"`
	// Duration is the wall-clock time the invocation took. Zero for
	// skipped capabilities, which are never invoked.
	Duration time.Duration `json:"duration"`
}
