package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates no actor identity was presented.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden covers both boards the actor may not touch and boards
	// that do not exist; existence is never disclosed to non-authorized
	// actors.
	ErrForbidden = errors.New("unauthorized access to board")
)

// ValidationError reports a field-specific input problem.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string { return e.Field + " " + e.Msg }

// LimitExceededError reports a quota hit, naming the limit and its ceiling.
type LimitExceededError struct {
	Limit string
	Max   int
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d)", e.Limit, e.Max)
}
