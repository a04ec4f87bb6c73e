package orchestrator

import (
	"errors"
	"fmt"
)

// ErrCycleDetected indicates a circular dependency among the capabilities
// selected for a turn.
var ErrCycleDetected = errors.New("circular capability dependency detected")

// ConfigurationError marks a deployment or registration bug: a cyclic
// dependency graph, or an intent mapped to an unregistered capability.
// It is fatal for the turn, unlike individual capability failures.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
