// Package domain contains the core entities of the Third Time scheduler:
// the break bank, the cycle configuration and the interval records the
// state machine sequences. It has no knowledge of timers, storage or UI.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors.
var (
	ErrConfiguration         = errors.New("invalid configuration")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNoActiveInterval      = errors.New("no active interval")
	ErrIntervalAlreadyActive = errors.New("interval already active")
	ErrIntervalNotFound      = errors.New("interval not found")
)

// ConfigurationError reports a configuration value that cannot be used to
// compute a break.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidArgument wraps ErrInvalidArgument with the offending argument.
func InvalidArgument(name string, value any) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidArgument, name, value)
}
