// Package errs defines the failure kinds reported by the fingerprinting pipeline.
//
// Every stage returns one of these types (possibly wrapped with fmt.Errorf)
// instead of partial output. Callers match a kind with errors.As.
package errs

import "fmt"

// InputError reports an empty or malformed intensity matrix.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// Input returns an InputError with a formatted reason.
func Input(format string, args ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError reports a failure of the image decoder collaborator.
type DecodeError struct {
	Locator string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Locator, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ShapeError reports a count that must be a perfect square but is not.
type ShapeError struct {
	What  string // "block count", "coordinate count", ...
	Count int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s %d is not a perfect square", e.What, e.Count)
}

// ConfigError reports an invalid pipeline parameter.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}
