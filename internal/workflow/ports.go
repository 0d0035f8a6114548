package workflow

import (
	"context"
	"time"

	"github.com/tripdesk/travel-approval/internal/models"
)

// InstanceStore is the durable record of running approvals. Implementations
// must make Create and ApplyTransition atomic: the instance write and its
// audit entry commit together or not at all.
type InstanceStore interface {
	// Create persists a new instance together with its SUBMIT audit entry.
	// Returns ErrDuplicateInstance if the (subject, workflow type) pair
	// already has an instance.
	Create(ctx context.Context, instance *models.WorkflowInstance, entry *models.AuditEntry) error

	GetByID(ctx context.Context, id int64) (*models.WorkflowInstance, error)
	GetBySubject(ctx context.Context, subjectID, workflowType string) (*models.WorkflowInstance, error)

	// ApplyTransition writes the mutated instance and appends the audit entry
	// in one transaction, guarded by an optimistic version check. Returns
	// ErrStateConflict if expectedVersion no longer matches the stored row.
	ApplyTransition(ctx context.Context, instance *models.WorkflowInstance, entry *models.AuditEntry, expectedVersion int64) error

	// ListPending returns non-terminal instances filtered by required role
	// and, when approverID is non-empty, by assigned approver.
	ListPending(ctx context.Context, role, approverID string) ([]*models.WorkflowInstance, error)

	// ListOverdue returns non-terminal instances whose due date has passed.
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*models.WorkflowInstance, error)

	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// AuditStore reads the append-only action log. Appends happen only through
// InstanceStore writes so the log can never drift from instance state.
type AuditStore interface {
	// HistoryForSubject returns entries ordered by timestamp descending.
	HistoryForSubject(ctx context.Context, subjectID string) ([]*models.AuditEntry, error)

	// ApprovalDurations returns, for each completed instance, the elapsed time
	// between its SUBMIT entry and its completion.
	ApprovalDurations(ctx context.Context) ([]time.Duration, error)
}

// StepSource provides the active step list for a workflow type in ascending
// sequence order.
type StepSource interface {
	ActiveSteps(ctx context.Context, workflowType string) ([]*models.StepDefinition, error)
}

// VoucherGenerator renders a reimbursement voucher once a post-travel run
// completes. Generation is best-effort and never blocks the transition.
type VoucherGenerator interface {
	Generate(ctx context.Context, instance *models.WorkflowInstance, history []*models.AuditEntry) (string, error)
}
