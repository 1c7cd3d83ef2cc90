package server

import "fmt"

// ValidationError reports a rejected ingress field, distinct from the
// teacher's string-matched "not found" check: callers switch on type
// rather than scanning error text, so a store error that happens to
// contain the word "found" can never be mistaken for a validation
// failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func asValidationError(err error) (*ValidationError, bool) {
	ve, ok := err.(*ValidationError)
	return ve, ok
}
