package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
	"github.com/tripdesk/travel-approval/pkg/database"
)

// StepRepository handles step definition database operations
type StepRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *database.DB, logger *zap.Logger) *StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists a new step definition
func (r *StepRepository) Insert(ctx context.Context, step *models.StepDefinition) error {
	query := `
		INSERT INTO step_definitions (
			workflow_type, step_name, approver_role, sequence_order,
			mandatory, time_limit_seconds, auto_approve_on_timeout, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		step.WorkflowType,
		step.StepName,
		step.ApproverRole,
		step.SequenceOrder,
		step.Mandatory,
		int64(step.TimeLimit/time.Second),
		step.AutoApproveOnTimeout,
		step.Active,
	)
	if err != nil {
		r.logger.Error("Failed to insert step definition",
			zap.String("workflow_type", step.WorkflowType),
			zap.String("step", step.StepName),
			zap.Error(err))
		return fmt.Errorf("failed to insert step definition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	step.ID = id
	return nil
}

// ListActive retrieves the active steps of a workflow type ordered by
// sequence order ascending
func (r *StepRepository) ListActive(ctx context.Context, workflowType string) ([]*models.StepDefinition, error) {
	query := `
		SELECT id, workflow_type, step_name, approver_role, sequence_order,
			mandatory, time_limit_seconds, auto_approve_on_timeout, active, created_at
		FROM step_definitions
		WHERE workflow_type = ? AND active = 1
		ORDER BY sequence_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowType)
	if err != nil {
		r.logger.Error("Failed to list active steps",
			zap.String("workflow_type", workflowType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list active steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.StepDefinition
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// Deactivate retires a step definition from routing
func (r *StepRepository) Deactivate(ctx context.Context, workflowType, stepName string) error {
	query := `UPDATE step_definitions SET active = 0 WHERE workflow_type = ? AND step_name = ?`

	result, err := r.db.ExecContext(ctx, query, workflowType, stepName)
	if err != nil {
		r.logger.Error("Failed to deactivate step",
			zap.String("workflow_type", workflowType),
			zap.String("step", stepName),
			zap.Error(err))
		return fmt.Errorf("failed to deactivate step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step not found: %s/%s", workflowType, stepName)
	}

	return nil
}

func scanStep(rows *sql.Rows) (*models.StepDefinition, error) {
	var step models.StepDefinition
	var timeLimitSeconds int64

	err := rows.Scan(
		&step.ID,
		&step.WorkflowType,
		&step.StepName,
		&step.ApproverRole,
		&step.SequenceOrder,
		&step.Mandatory,
		&timeLimitSeconds,
		&step.AutoApproveOnTimeout,
		&step.Active,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan step definition: %w", err)
	}

	step.TimeLimit = time.Duration(timeLimitSeconds) * time.Second
	return &step, nil
}
