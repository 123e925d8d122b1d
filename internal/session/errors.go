package session

import (
	"errors"
	"fmt"
)

// ErrSessionActive is returned by Start when a session is already running.
// At most one session is active process-wide.
var ErrSessionActive = errors.New("a recording session is already active")

// ValidationError reports a missing required session input. The user must
// correct it and retry.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required session input: %s", e.Field)
}

// CredentialError reports a missing or placeholder API key. Distinct from a
// generic failure so the interface can message it precisely.
type CredentialError struct {
	Name string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s API key is not configured", e.Name)
}
