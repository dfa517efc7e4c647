// Package errs defines the engine's typed error kinds. Callers translate
// these into user-facing responses; nothing here is transport-specific.
package errs

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a user, quiz, course, or badge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotEnrolled is returned when a user submits to a quiz of a course
	// they are not enrolled in.
	ErrNotEnrolled = errors.New("user not enrolled in course")

	// ErrUnknownCondition is returned when a badge carries a condition type
	// outside the closed set. Surfaced rather than silently skipped.
	ErrUnknownCondition = errors.New("unknown badge condition type")

	// ErrInvariant is returned when a profile balance diverges from the
	// ledger sum. This should never occur; it is surfaced loudly, never
	// silently corrected.
	ErrInvariant = errors.New("balance invariant violation")
)

// CooldownError rejects a quiz submission made before the post-failure
// cooldown elapsed. RetryAt is when the next attempt becomes allowed.
type CooldownError struct {
	RetryAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active until %s", e.RetryAt.Format(time.RFC3339))
}

// IsCooldown reports whether err is a CooldownError and returns it if so.
func IsCooldown(err error) (*CooldownError, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
