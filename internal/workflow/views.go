package workflow

import (
	"context"
	"fmt"

	"github.com/tripdesk/travel-approval/internal/models"
)

// MetricsReport aggregates workflow statistics over the instance store and
// the audit log. Counts are computed on read, never maintained as separate
// counters, so they cannot drift from the underlying records.
type MetricsReport struct {
	StatusCounts           map[string]int64 `json:"status_counts"`
	CompletedCount         int              `json:"completed_count"`
	AverageApprovalSeconds float64          `json:"average_approval_seconds"`
}

// Instance returns a read-only snapshot by instance id.
func (e *Engine) Instance(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	instance, err := e.instances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %d", ErrInstanceNotFound, id)
	}
	return instance, nil
}

// InstanceBySubject returns a read-only snapshot by subject and type.
func (e *Engine) InstanceBySubject(ctx context.Context, subjectID, workflowType string) (*models.WorkflowInstance, error) {
	instance, err := e.instances.GetBySubject(ctx, subjectID, workflowType)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: subject %s, type %s", ErrInstanceNotFound, subjectID, workflowType)
	}
	return instance, nil
}

// History returns the audit trail for a subject, newest first.
func (e *Engine) History(ctx context.Context, subjectID string) ([]*models.AuditEntry, error) {
	return e.audit.HistoryForSubject(ctx, subjectID)
}

// Pending returns the in-flight instances waiting on a role, optionally
// narrowed to a specific approver identity.
func (e *Engine) Pending(ctx context.Context, role, approverID string) ([]*models.WorkflowInstance, error) {
	return e.instances.ListPending(ctx, role, approverID)
}

// Metrics aggregates per-status counts and the average time from SUBMIT to
// completion across completed instances.
func (e *Engine) Metrics(ctx context.Context) (*MetricsReport, error) {
	counts, err := e.instances.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	durations, err := e.audit.ApprovalDurations(ctx)
	if err != nil {
		return nil, err
	}

	report := &MetricsReport{
		StatusCounts:   counts,
		CompletedCount: len(durations),
	}
	if len(durations) > 0 {
		var total float64
		for _, d := range durations {
			total += d.Seconds()
		}
		report.AverageApprovalSeconds = total / float64(len(durations))
	}

	return report, nil
}
