package chiptone

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes of the engine. Unknown effect names
// are not an error: they pass the audio through unchanged.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrRenderFailure    = errors.New("render failed")
)

// ParameterError describes a rejected input value. It always unwraps to
// ErrInvalidParameter, so callers can test with errors.Is.
type ParameterError struct {
	Field  string // e.g. "bpm", "duration", "tracks"
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

func paramError(field string, value any, reason string) *ParameterError {
	return &ParameterError{Field: field, Value: value, Reason: reason}
}
