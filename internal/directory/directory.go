// Package directory holds the boundary contracts the workflow engine
// consumes: travel-request lookups, approver resolution, notification
// delivery, and subject status write-back. All of them are external
// collaborators; the engine treats their failures as degradations, never as
// transition failures.
package directory

import (
	"context"
	"errors"
	"time"
)

// ErrApproverNotFound is returned when the directory has no approver for the
// requested role/owner combination.
var ErrApproverNotFound = errors.New("no approver found for role")

// ErrSubjectNotFound is returned when the travel request does not exist.
var ErrSubjectNotFound = errors.New("subject not found")

// Subject is the read-only view of a travel request the engine needs before
// it can start an approval.
type Subject struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Destination   string    `json:"destination"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	EstimatedCost float64   `json:"estimated_cost"`
}

// SubjectService reads travel requests and writes their status back as the
// workflow progresses.
type SubjectService interface {
	// FetchSubject must succeed before an instance can be created; failure
	// aborts creation.
	FetchSubject(ctx context.Context, subjectID string) (*Subject, error)

	// UpdateSubjectStatus is best-effort: failures are logged by the caller
	// and never block a transition.
	UpdateSubjectStatus(ctx context.Context, subjectID, status string) error
}

// ApproverDirectory resolves the concrete approver identity for a role.
type ApproverDirectory interface {
	// ResolveApprover returns the approver id for the role, scoped to the
	// subject owner for identity-scoped roles (manager resolution).
	ResolveApprover(ctx context.Context, role, ownerID string) (string, error)
}

// Notifier delivers best-effort notifications to approvers and employees.
type Notifier interface {
	Notify(ctx context.Context, approverID, subjectID, kind, message string) error
}
