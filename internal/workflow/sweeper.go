package workflow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
)

// SweepTimeouts scans for instances whose due date has passed and applies the
// timeout policy of their current step: optional steps with auto-approve
// advance as if a synthetic system APPROVE arrived; mandatory steps are
// flagged overdue (escalated) once but keep waiting. Returns the number of
// instances acted on.
//
// Timeout handling races against legitimate signals: the versioned write
// means whichever lands first wins, and the loser is a no-op here.
func (e *Engine) SweepTimeouts(ctx context.Context) (int, error) {
	overdue, err := e.instances.ListOverdue(ctx, e.now(), e.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	acted := 0
	for _, instance := range overdue {
		steps, err := e.steps.ActiveSteps(ctx, instance.WorkflowType)
		if err != nil {
			e.logger.Error("Failed to load steps during sweep",
				zap.String("workflow_type", instance.WorkflowType),
				zap.Error(err))
			continue
		}

		def := findStep(steps, instance.CurrentStep)

		switch {
		case def == nil:
			// Step deactivated while the instance waits on it. Timeout policy
			// unknown, so flag it for a human; an approver can still decide
			// and the run resumes via its recorded next-step hint.
			if instance.Status != models.StatusEscalated && e.markOverdue(ctx, instance) {
				acted++
			}
		case !def.Mandatory && def.AutoApproveOnTimeout:
			if e.autoApprove(ctx, instance) {
				acted++
			}
		case instance.Status != models.StatusEscalated:
			if e.markOverdue(ctx, instance) {
				acted++
			}
		}
	}

	return acted, nil
}

// autoApprove advances an instance past an expired optional step on behalf of
// the synthetic system actor. The guard is not consulted: this path exists
// precisely because no external actor acted.
func (e *Engine) autoApprove(ctx context.Context, instance *models.WorkflowInstance) bool {
	expectedVersion := instance.Version
	decidedStep := instance.CurrentStep
	now := e.now()

	if err := e.advance(ctx, instance, now); err != nil {
		e.logger.Error("Auto-approve routing failed",
			zap.Int64("instance_id", instance.ID),
			zap.Error(err))
		return false
	}
	instance.UpdatedAt = now

	entry := &models.AuditEntry{
		InstanceID: instance.ID,
		SubjectID:  instance.SubjectID,
		ActorRole:  models.RoleSystem,
		ActorID:    models.SystemActorID,
		Action:     models.ActionApprove,
		Step:       decidedStep,
		Comments:   "auto-approved on timeout",
		Timestamp:  now,
	}

	if err := e.instances.ApplyTransition(ctx, instance, entry, expectedVersion); err != nil {
		if errors.Is(err, ErrStateConflict) {
			// A real signal won the race; nothing to do.
			return false
		}
		e.logger.Error("Auto-approve write failed",
			zap.Int64("instance_id", instance.ID),
			zap.Error(err))
		return false
	}

	e.logger.Info("Step auto-approved on timeout",
		zap.Int64("instance_id", instance.ID),
		zap.String("step", decidedStep))

	e.afterTransition(ctx, instance)
	return true
}

// markOverdue flags a mandatory overdue step as escalated for reporting. The
// instance keeps waiting for the real approver; it is never auto-advanced.
func (e *Engine) markOverdue(ctx context.Context, instance *models.WorkflowInstance) bool {
	expectedVersion := instance.Version
	now := e.now()

	instance.Status = models.StatusEscalated
	instance.Priority++
	instance.UpdatedAt = now

	entry := &models.AuditEntry{
		InstanceID: instance.ID,
		SubjectID:  instance.SubjectID,
		ActorRole:  models.RoleSystem,
		ActorID:    models.SystemActorID,
		Action:     models.ActionEscalate,
		Step:       instance.CurrentStep,
		Comments:   "step overdue",
		Timestamp:  now,
	}

	if err := e.instances.ApplyTransition(ctx, instance, entry, expectedVersion); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return false
		}
		e.logger.Error("Overdue flag write failed",
			zap.Int64("instance_id", instance.ID),
			zap.Error(err))
		return false
	}

	e.logger.Info("Overdue step escalated",
		zap.Int64("instance_id", instance.ID),
		zap.String("step", instance.CurrentStep))

	e.notifyApprover(ctx, instance)
	return true
}
