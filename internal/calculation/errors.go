package calculation

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Typed errors below match them through errors.Is.
var (
	// ErrInvalidInput marks a caller-supplied value the calculators refuse.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration marks a malformed bracket table or rate.
	ErrConfiguration = errors.New("invalid configuration")
)

// InvalidInputError reports a rejected input value such as a negative amount.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value, e.Reason)
}

// Is matches ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// ConfigurationError reports a defect in a bracket table. Index is the
// offending bracket, or -1 when the table as a whole is wrong.
type ConfigurationError struct {
	Index  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid bracket table: %s", e.Reason)
	}
	return fmt.Sprintf("invalid bracket table: bracket %d: %s", e.Index, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
