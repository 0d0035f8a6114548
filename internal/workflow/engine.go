package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/directory"
	"github.com/tripdesk/travel-approval/internal/models"
)

// EngineConfig carries the knobs the coordinator needs beyond its
// collaborators. DefaultManagerID is the fallback approver when manager
// resolution fails; without it a blocking step would stall indefinitely.
type EngineConfig struct {
	DefaultManagerID string
	SweepBatchSize   int
}

// Engine is the execution coordinator: it creates instances from the step
// registry, applies validated decision signals, advances instances through
// the transition rules, and chains the post-travel workflow from a completed
// pre-travel one. All state writes go through the versioned store so that at
// most one transition per instance can be accepted at a time.
type Engine struct {
	instances InstanceStore
	audit     AuditStore
	steps     StepSource
	subjects  directory.SubjectService
	approvers directory.ApproverDirectory
	notifier  directory.Notifier
	vouchers  VoucherGenerator
	cfg       EngineConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a new execution coordinator. vouchers may be nil when
// voucher export is disabled.
func NewEngine(
	instances InstanceStore,
	audit AuditStore,
	steps StepSource,
	subjects directory.SubjectService,
	approvers directory.ApproverDirectory,
	notifier directory.Notifier,
	vouchers VoucherGenerator,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	return &Engine{
		instances: instances,
		audit:     audit,
		steps:     steps,
		subjects:  subjects,
		approvers: approvers,
		notifier:  notifier,
		vouchers:  vouchers,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Initiate starts a new workflow instance for a subject. The subject must be
// fetchable; a second instance for the same (subject, workflow type) pair is
// rejected outright.
func (e *Engine) Initiate(ctx context.Context, subjectID, workflowType string, estimatedCost float64) (*models.WorkflowInstance, error) {
	if !models.IsValidWorkflowType(workflowType) {
		return nil, fmt.Errorf("%w: unknown workflow type %s", ErrInvalidAction, workflowType)
	}

	subject, err := e.subjects.FetchSubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubjectUnavailable, err)
	}

	facts := models.CostFacts{EstimatedCost: subject.EstimatedCost}
	if estimatedCost > 0 {
		facts.EstimatedCost = estimatedCost
	}

	return e.startInstance(ctx, subject, workflowType, facts, models.RoleEmployee, subject.OwnerID)
}

// startInstance creates and persists a PENDING instance at the first active
// step, with its SUBMIT audit entry. Shared by Initiate and chaining.
func (e *Engine) startInstance(ctx context.Context, subject *directory.Subject, workflowType string, facts models.CostFacts, submitterRole, submitterID string) (*models.WorkflowInstance, error) {
	if existing, err := e.instances.GetBySubject(ctx, subject.ID, workflowType); err != nil {
		return nil, fmt.Errorf("failed to check existing instance: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: subject %s, type %s", ErrDuplicateInstance, subject.ID, workflowType)
	}

	steps, err := e.steps.ActiveSteps(ctx, workflowType)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no active steps registered for workflow type %s", workflowType)
	}

	first := steps[0]
	now := e.now()

	instance := &models.WorkflowInstance{
		SubjectID:           subject.ID,
		WorkflowType:        workflowType,
		CurrentStep:         first.StepName,
		CurrentApproverRole: first.ApproverRole,
		CurrentApproverID:   e.resolveApprover(ctx, first.ApproverRole, subject.OwnerID),
		Status:              models.StatusPending,
		Priority:            0,
		CostFacts:           facts,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if first.TimeLimit > 0 {
		due := now.Add(first.TimeLimit)
		instance.DueDate = &due
	}
	if hint := FollowingStep(steps, first.StepName); hint != nil {
		instance.NextStepHint = hint.StepName
	}

	entry := &models.AuditEntry{
		SubjectID: subject.ID,
		ActorRole: submitterRole,
		ActorID:   submitterID,
		Action:    models.ActionSubmit,
		Step:      first.StepName,
		Timestamp: now,
	}

	if err := e.instances.Create(ctx, instance, entry); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance created",
		zap.Int64("id", instance.ID),
		zap.String("subject_id", subject.ID),
		zap.String("workflow_type", workflowType),
		zap.String("first_step", first.StepName))

	e.notifyApprover(ctx, instance)
	e.updateSubjectStatus(ctx, instance)

	return instance, nil
}

// Decide applies an external decision signal to an instance. Authorization,
// state read, transition computation, and the versioned write happen against
// a single observed version; a concurrent transition surfaces as
// ErrStateConflict and leaves no trace.
func (e *Engine) Decide(ctx context.Context, instanceID int64, signal *models.DecisionSignal) (*models.WorkflowInstance, error) {
	if !models.IsValidAction(signal.Action) || signal.Action == models.ActionSubmit {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, signal.Action)
	}

	instance, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %d", ErrInstanceNotFound, instanceID)
	}
	if !instance.AcceptsSignals() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotPending, instance.Status)
	}

	if err := Authorize(instance, signal); err != nil {
		return nil, err
	}

	expectedVersion := instance.Version
	decidedStep := instance.CurrentStep
	now := e.now()
	e.foldCostFacts(instance, signal)

	switch signal.Action {
	case models.ActionApprove:
		if err := e.advance(ctx, instance, now); err != nil {
			return nil, err
		}
	case models.ActionUploadArtifact:
		// Bills land on the upload step only; anywhere else the artifact has
		// no wait to satisfy.
		if instance.CurrentStep != models.StepBillUpload {
			return nil, fmt.Errorf("%w: %s on step %s", ErrInvalidAction, signal.Action, instance.CurrentStep)
		}
		if err := e.advance(ctx, instance, now); err != nil {
			return nil, err
		}
	case models.ActionReject:
		e.finalize(instance, models.StatusRejected, now)
	case models.ActionReturn:
		// RETURNED halts automatic progress; resumption requires a fresh
		// submission, not an automatic retry.
		e.finalize(instance, models.StatusReturned, now)
	case models.ActionEscalate:
		instance.Status = models.StatusEscalated
		instance.Priority++
	}

	instance.UpdatedAt = now
	entry := &models.AuditEntry{
		InstanceID: instance.ID,
		SubjectID:  instance.SubjectID,
		ActorRole:  signal.ClaimedRole,
		ActorID:    signal.ClaimedActorID,
		Action:     signal.Action,
		Step:       decidedStep,
		Comments:   e.auditComments(signal),
		Timestamp:  now,
	}

	if err := e.instances.ApplyTransition(ctx, instance, entry, expectedVersion); err != nil {
		return nil, err
	}

	e.logger.Info("Decision applied",
		zap.Int64("instance_id", instance.ID),
		zap.String("action", signal.Action),
		zap.String("step", decidedStep),
		zap.String("status", instance.Status),
		zap.String("current_step", instance.CurrentStep))

	e.afterTransition(ctx, instance)
	return instance, nil
}

// advance moves the instance to the step the transition rules name, or to a
// terminal status when the sequence is exhausted. A computed step whose
// approver role is SYSTEM completes the instance immediately without another
// notification cycle.
func (e *Engine) advance(ctx context.Context, instance *models.WorkflowInstance, now time.Time) error {
	steps, err := e.steps.ActiveSteps(ctx, instance.WorkflowType)
	if err != nil {
		return fmt.Errorf("failed to load steps: %w", err)
	}

	next, err := NextStep(instance.WorkflowType, instance.CurrentStep, instance.CostFacts, steps)
	if err != nil {
		if !errors.Is(err, ErrStepNotFound) {
			return err
		}
		// The current step was deactivated after assignment. The run continues
		// against the snapshot it recorded rather than failing.
		next = resumeAfterPrunedStep(instance, steps)
	}

	if next == nil || next.ApproverRole == models.RoleSystem {
		status := models.StatusApproved
		if instance.WorkflowType == models.WorkflowPostTravel {
			status = models.StatusCompleted
		}
		e.finalize(instance, status, now)
		return nil
	}

	ownerID := e.subjectOwner(ctx, instance.SubjectID)

	instance.PreviousStep = instance.CurrentStep
	instance.CurrentStep = next.StepName
	instance.CurrentApproverRole = next.ApproverRole
	instance.CurrentApproverID = e.resolveApprover(ctx, next.ApproverRole, ownerID)
	instance.Status = models.StatusPending
	instance.DueDate = nil
	if next.TimeLimit > 0 {
		due := now.Add(next.TimeLimit)
		instance.DueDate = &due
	}
	instance.NextStepHint = ""
	if hint := FollowingStep(steps, next.StepName); hint != nil {
		instance.NextStepHint = hint.StepName
	}

	return nil
}

func (e *Engine) finalize(instance *models.WorkflowInstance, status string, now time.Time) {
	instance.PreviousStep = instance.CurrentStep
	instance.Status = status
	instance.DueDate = nil
	instance.NextStepHint = ""
	instance.CompletedAt = &now
}

// foldCostFacts merges the business facts carried on a signal into the
// instance before routing runs.
func (e *Engine) foldCostFacts(instance *models.WorkflowInstance, signal *models.DecisionSignal) {
	if signal.CostOverride != nil {
		if instance.WorkflowType == models.WorkflowPostTravel {
			instance.CostFacts.ActualCost = *signal.CostOverride
		} else {
			instance.CostFacts.EstimatedCost = *signal.CostOverride
		}
	}
	if signal.OverBudget != nil {
		instance.CostFacts.IsOverBudget = *signal.OverBudget
		if signal.OverBudgetReason != "" {
			instance.CostFacts.OverBudgetReason = signal.OverBudgetReason
		}
	}
}

func (e *Engine) auditComments(signal *models.DecisionSignal) string {
	if signal.Action == models.ActionEscalate && signal.Comments == "" {
		return signal.EscalationReason
	}
	return signal.Comments
}

// resolveApprover delegates to the directory. Manager resolution failures
// fall back to the configured default approver; other roles degrade to an
// unassigned step held for manual assignment.
func (e *Engine) resolveApprover(ctx context.Context, role, ownerID string) string {
	if role == models.RoleSystem {
		return models.SystemActorID
	}

	approverID, err := e.approvers.ResolveApprover(ctx, role, ownerID)
	if err != nil {
		if role == models.RoleManager {
			e.logger.Warn("Manager resolution failed, using default approver",
				zap.String("owner_id", ownerID),
				zap.Error(err))
			return e.cfg.DefaultManagerID
		}
		e.logger.Warn("Approver resolution failed, step held for manual assignment",
			zap.String("role", role),
			zap.Error(err))
		return ""
	}
	return approverID
}

func (e *Engine) subjectOwner(ctx context.Context, subjectID string) string {
	subject, err := e.subjects.FetchSubject(ctx, subjectID)
	if err != nil {
		e.logger.Warn("Subject lookup failed during transition",
			zap.String("subject_id", subjectID),
			zap.Error(err))
		return ""
	}
	return subject.OwnerID
}

// afterTransition runs the best-effort side effects of an accepted
// transition: notifications, subject status write-back, post-travel chaining
// and voucher export. None of them can fail the transition itself.
func (e *Engine) afterTransition(ctx context.Context, instance *models.WorkflowInstance) {
	e.updateSubjectStatus(ctx, instance)

	if instance.Status == models.StatusPending || instance.Status == models.StatusEscalated {
		e.notifyApprover(ctx, instance)
		return
	}

	if instance.WorkflowType == models.WorkflowPreTravel && instance.Status == models.StatusApproved {
		e.chainPostTravel(ctx, instance)
	}
	if instance.WorkflowType == models.WorkflowPostTravel && instance.Status == models.StatusCompleted {
		e.generateVoucher(ctx, instance)
	}
}

// chainPostTravel starts the dependent post-travel workflow once pre-travel
// authorization completes. The existence check makes retried completion
// signals idempotent: at most one post-travel instance per subject.
func (e *Engine) chainPostTravel(ctx context.Context, pre *models.WorkflowInstance) {
	existing, err := e.instances.GetBySubject(ctx, pre.SubjectID, models.WorkflowPostTravel)
	if err != nil {
		e.logger.Error("Failed to check for existing post-travel instance",
			zap.String("subject_id", pre.SubjectID),
			zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	subject, err := e.subjects.FetchSubject(ctx, pre.SubjectID)
	if err != nil {
		e.logger.Error("Subject lookup failed, post-travel chaining skipped",
			zap.String("subject_id", pre.SubjectID),
			zap.Error(err))
		return
	}

	if _, err := e.startInstance(ctx, subject, models.WorkflowPostTravel, pre.CostFacts, models.RoleSystem, models.SystemActorID); err != nil {
		if errors.Is(err, ErrDuplicateInstance) {
			return
		}
		e.logger.Error("Failed to chain post-travel workflow",
			zap.String("subject_id", pre.SubjectID),
			zap.Error(err))
		return
	}

	e.logger.Info("Post-travel workflow chained", zap.String("subject_id", pre.SubjectID))
}

func (e *Engine) generateVoucher(ctx context.Context, instance *models.WorkflowInstance) {
	if e.vouchers == nil {
		return
	}

	history, err := e.audit.HistoryForSubject(ctx, instance.SubjectID)
	if err != nil {
		e.logger.Warn("History lookup failed, voucher generated without approval chain",
			zap.String("subject_id", instance.SubjectID),
			zap.Error(err))
	}

	path, err := e.vouchers.Generate(ctx, instance, history)
	if err != nil {
		e.logger.Error("Voucher generation failed",
			zap.Int64("instance_id", instance.ID),
			zap.Error(err))
		return
	}

	e.logger.Info("Reimbursement voucher generated",
		zap.Int64("instance_id", instance.ID),
		zap.String("path", path))
}

func (e *Engine) notifyApprover(ctx context.Context, instance *models.WorkflowInstance) {
	if instance.CurrentApproverID == "" || instance.CurrentApproverID == models.SystemActorID {
		return
	}

	message := fmt.Sprintf("Approval required: %s step %s for travel request %s",
		instance.WorkflowType, instance.CurrentStep, instance.SubjectID)
	if err := e.notifier.Notify(ctx, instance.CurrentApproverID, instance.SubjectID, "APPROVAL_REQUESTED", message); err != nil {
		e.logger.Warn("Notification delivery failed",
			zap.String("approver_id", instance.CurrentApproverID),
			zap.String("subject_id", instance.SubjectID),
			zap.Error(err))
	}
}

func (e *Engine) updateSubjectStatus(ctx context.Context, instance *models.WorkflowInstance) {
	status := fmt.Sprintf("%s_%s", instance.WorkflowType, instance.Status)
	if err := e.subjects.UpdateSubjectStatus(ctx, instance.SubjectID, status); err != nil {
		e.logger.Warn("Subject status update failed",
			zap.String("subject_id", instance.SubjectID),
			zap.String("status", status),
			zap.Error(err))
	}
}
