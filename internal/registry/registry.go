// Package registry manages the ordered, versioned step lists each workflow
// type runs against. Registry changes never touch in-flight instances: an
// instance keeps advancing against the step list implied by its current step
// and next-step hint, so reconfiguration cannot break existing runs.
package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
)

// ErrDuplicateSequenceOrder is returned when another active step of the same
// workflow type already claims the sequence order.
var ErrDuplicateSequenceOrder = errors.New("sequence order already in use for workflow type")

// StepStore is the persistence contract the registry sits on.
type StepStore interface {
	Insert(ctx context.Context, step *models.StepDefinition) error
	ListActive(ctx context.Context, workflowType string) ([]*models.StepDefinition, error)
	Deactivate(ctx context.Context, workflowType, stepName string) error
}

// Registry validates and serves step definitions.
type Registry struct {
	store  StepStore
	logger *zap.Logger
}

// New creates a registry over the given store.
func New(store StepStore, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
	}
}

// Register publishes a new step definition. Fails with
// ErrDuplicateSequenceOrder if an active step of the same workflow type
// already claims the order; the failure affects only this mutation.
func (r *Registry) Register(ctx context.Context, step *models.StepDefinition) error {
	if step.WorkflowType == "" || step.StepName == "" || step.ApproverRole == "" {
		return fmt.Errorf("step definition requires workflow type, name and approver role")
	}
	if step.SequenceOrder <= 0 {
		return fmt.Errorf("sequence order must be positive, got %d", step.SequenceOrder)
	}

	active, err := r.store.ListActive(ctx, step.WorkflowType)
	if err != nil {
		return fmt.Errorf("failed to list active steps: %w", err)
	}
	for _, existing := range active {
		if existing.SequenceOrder == step.SequenceOrder {
			return fmt.Errorf("%w: order %d held by %s",
				ErrDuplicateSequenceOrder, step.SequenceOrder, existing.StepName)
		}
	}

	step.Active = true
	if err := r.store.Insert(ctx, step); err != nil {
		return err
	}

	r.logger.Info("Step registered",
		zap.String("workflow_type", step.WorkflowType),
		zap.String("step", step.StepName),
		zap.Int("order", step.SequenceOrder))
	return nil
}

// ActiveSteps returns the active steps of a workflow type in ascending
// sequence order.
func (r *Registry) ActiveSteps(ctx context.Context, workflowType string) ([]*models.StepDefinition, error) {
	return r.store.ListActive(ctx, workflowType)
}

// Deactivate retires a step from new routing. In-flight instances waiting on
// it are unaffected; the transition fallback skips pruned branch targets.
func (r *Registry) Deactivate(ctx context.Context, workflowType, stepName string) error {
	if err := r.store.Deactivate(ctx, workflowType, stepName); err != nil {
		return err
	}
	r.logger.Info("Step deactivated",
		zap.String("workflow_type", workflowType),
		zap.String("step", stepName))
	return nil
}

// Validate returns true iff all active steps of the workflow type have
// pairwise-distinct sequence orders.
func (r *Registry) Validate(ctx context.Context, workflowType string) (bool, error) {
	active, err := r.store.ListActive(ctx, workflowType)
	if err != nil {
		return false, err
	}

	seen := make(map[int]bool, len(active))
	for _, step := range active {
		if seen[step.SequenceOrder] {
			return false, nil
		}
		seen[step.SequenceOrder] = true
	}
	return true, nil
}
