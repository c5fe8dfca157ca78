package session

import (
	"errors"
	"fmt"
)

var ErrSessionNotFound = errors.New("session not found")

// CreationError reports why a session could not be built. Nothing is registered when it is
// returned. The cause stays reachable through errors.Is / errors.As.
type CreationError struct {
	URL string
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create session for %s: %v", e.URL, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }
