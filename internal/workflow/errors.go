package workflow

import "errors"

var (
	// ErrInstanceNotFound is returned when no instance matches the lookup.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrDuplicateInstance is returned when an instance already exists for
	// the (subject, workflow type) pair. Creation is rejected, never merged.
	ErrDuplicateInstance = errors.New("workflow instance already exists for subject")

	// ErrNotPending is returned when a signal targets an instance that is no
	// longer waiting on a decision (terminal, or already moved on).
	ErrNotPending = errors.New("workflow instance is not pending")

	// ErrStateConflict is returned when a concurrent transition won the race.
	// Callers should refetch the instance and decide whether to resubmit.
	ErrStateConflict = errors.New("workflow instance was modified concurrently")

	// ErrRoleMismatch is returned when the signal's claimed role does not
	// match the role required by the current step.
	ErrRoleMismatch = errors.New("claimed role does not match required approver role")

	// ErrActorMismatch is returned when an identity-scoped step receives a
	// decision from someone other than the assigned approver.
	ErrActorMismatch = errors.New("claimed actor does not match assigned approver")

	// ErrInvalidAction is returned for unknown actions, or actions that are
	// not valid on the current step (e.g. uploading bills outside BILL_UPLOAD).
	ErrInvalidAction = errors.New("action not valid for current step")

	// ErrSubjectUnavailable is returned when the travel request cannot be
	// fetched; instance creation is aborted.
	ErrSubjectUnavailable = errors.New("subject lookup failed")

	// ErrStepNotFound is returned when the instance's current step is absent
	// from the active step list, which indicates a registry misconfiguration.
	ErrStepNotFound = errors.New("current step not found in registry")
)

// IsAuthorizationError reports whether err is one of the guard failures.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrRoleMismatch) || errors.Is(err, ErrActorMismatch)
}

// IsConflictError reports whether err indicates the caller lost a race or
// targeted an instance that has already moved on.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrStateConflict) || errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrDuplicateInstance)
}
