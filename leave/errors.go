/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  Three error kinds cover every failure the engine can surface:

  1. Validation errors    - malformed input, date-range/half-day violations,
                            missing manager, unknown leave id
  2. Authorization errors - actor not permitted to act or view
  3. Internal errors      - storage or ledger update failures

PROPAGATION POLICY:
  Validation and authorization errors are raised at the point of detection
  and never retried. Ledger failures during a status update abort the entire
  transition. Notification failures are logged only and never escalated.

USAGE:
  Callers classify with errors.Is or the helpers:

    if leave.IsValidation(err) { ... 400 ... }
    if leave.IsAuthorization(err) { ... 403 ... }

SEE ALSO:
  - api/handlers.go: Maps kinds to HTTP statuses
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks malformed or rule-violating input.
	ErrValidation = errors.New("validation error")

	// ErrAuthorization marks an actor acting outside their permissions.
	ErrAuthorization = errors.New("authorization error")

	// ErrInternal marks storage and ledger failures. Details are for logs,
	// never for callers.
	ErrInternal = errors.New("internal error")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError carries a human-readable message safe to return to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthorizationError carries a human-readable message safe to return to callers.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }
func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// InternalError wraps an underlying failure. Err is logged, never surfaced.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error { return ErrInternal }

// =============================================================================
// CONSTRUCTORS AND HELPERS
// =============================================================================

func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) error {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

func Internalf(err error, format string, args ...any) error {
	return &InternalError{Message: fmt.Sprintf(format, args...), Err: err}
}

func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsAuthorization(err error) bool { return errors.Is(err, ErrAuthorization) }
func IsInternal(err error) bool      { return errors.Is(err, ErrInternal) }
