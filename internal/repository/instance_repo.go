package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
	"github.com/tripdesk/travel-approval/internal/workflow"
	"github.com/tripdesk/travel-approval/pkg/database"
)

// InstanceRepository is the sqlite-backed workflow instance store. It owns
// the atomicity contract of the coordinator: instance writes and their audit
// entries commit in one transaction, and transition writes carry an
// optimistic version check.
type InstanceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *database.DB, logger *zap.Logger) *InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, subject_id, workflow_type, current_step, current_approver_role,
	current_approver_id, status, previous_step, next_step_hint, priority,
	estimated_cost, actual_cost, is_over_budget, over_budget_reason,
	due_date, version, created_at, updated_at, completed_at
`

// Create persists a new instance and its SUBMIT audit entry atomically.
// A unique index on (subject_id, workflow_type) turns duplicate creation
// into workflow.ErrDuplicateInstance.
func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance, entry *models.AuditEntry) error {
	query := `
		INSERT INTO workflow_instances (
			subject_id, workflow_type, current_step, current_approver_role,
			current_approver_id, status, previous_step, next_step_hint, priority,
			estimated_cost, actual_cost, is_over_budget, over_budget_reason,
			due_date, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			instance.SubjectID,
			instance.WorkflowType,
			instance.CurrentStep,
			instance.CurrentApproverRole,
			instance.CurrentApproverID,
			instance.Status,
			instance.PreviousStep,
			instance.NextStepHint,
			instance.Priority,
			instance.CostFacts.EstimatedCost,
			instance.CostFacts.ActualCost,
			instance.CostFacts.IsOverBudget,
			instance.CostFacts.OverBudgetReason,
			nullableTime(instance.DueDate),
			instance.Version,
			instance.CreatedAt,
			instance.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: subject %s, type %s",
					workflow.ErrDuplicateInstance, instance.SubjectID, instance.WorkflowType)
			}
			r.logger.Error("Failed to create instance",
				zap.String("subject_id", instance.SubjectID),
				zap.Error(err))
			return fmt.Errorf("failed to create instance: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		instance.ID = id

		entry.InstanceID = id
		if err := insertAuditEntry(ctx, tx, entry); err != nil {
			return err
		}

		return nil
	})
}

// GetByID retrieves an instance by ID. Returns (nil, nil) when absent.
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`
	return r.queryOne(ctx, query, id)
}

// GetBySubject retrieves the instance for a (subject, workflow type) pair.
// Returns (nil, nil) when absent.
func (r *InstanceRepository) GetBySubject(ctx context.Context, subjectID, workflowType string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE subject_id = ? AND workflow_type = ?`
	return r.queryOne(ctx, query, subjectID, workflowType)
}

// ApplyTransition writes the mutated instance and appends its audit entry in
// one transaction. The UPDATE is scoped to the expected version; zero rows
// affected means a concurrent transition won and the caller gets
// workflow.ErrStateConflict.
func (r *InstanceRepository) ApplyTransition(ctx context.Context, instance *models.WorkflowInstance, entry *models.AuditEntry, expectedVersion int64) error {
	query := `
		UPDATE workflow_instances SET
			current_step = ?, current_approver_role = ?, current_approver_id = ?,
			status = ?, previous_step = ?, next_step_hint = ?, priority = ?,
			estimated_cost = ?, actual_cost = ?, is_over_budget = ?, over_budget_reason = ?,
			due_date = ?, version = version + 1, updated_at = ?, completed_at = ?
		WHERE id = ? AND version = ?
	`

	return r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			instance.CurrentStep,
			instance.CurrentApproverRole,
			instance.CurrentApproverID,
			instance.Status,
			instance.PreviousStep,
			instance.NextStepHint,
			instance.Priority,
			instance.CostFacts.EstimatedCost,
			instance.CostFacts.ActualCost,
			instance.CostFacts.IsOverBudget,
			instance.CostFacts.OverBudgetReason,
			nullableTime(instance.DueDate),
			instance.UpdatedAt,
			nullableTime(instance.CompletedAt),
			instance.ID,
			expectedVersion,
		)
		if err != nil {
			r.logger.Error("Failed to apply transition",
				zap.Int64("instance_id", instance.ID),
				zap.Error(err))
			return fmt.Errorf("failed to apply transition: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: instance %d, version %d",
				workflow.ErrStateConflict, instance.ID, expectedVersion)
		}

		instance.Version = expectedVersion + 1

		if err := insertAuditEntry(ctx, tx, entry); err != nil {
			return err
		}

		return nil
	})
}

// ListPending returns non-terminal instances, optionally filtered by required
// role and assigned approver, most urgent first.
func (r *InstanceRepository) ListPending(ctx context.Context, role, approverID string) ([]*models.WorkflowInstance, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + instanceColumns + ` FROM workflow_instances WHERE status IN (?, ?)`)
	args := []interface{}{models.StatusPending, models.StatusEscalated}

	if role != "" {
		sb.WriteString(` AND current_approver_role = ?`)
		args = append(args, role)
	}
	if approverID != "" {
		sb.WriteString(` AND current_approver_id = ?`)
		args = append(args, approverID)
	}
	sb.WriteString(` ORDER BY priority DESC, created_at ASC`)

	return r.queryMany(ctx, sb.String(), args...)
}

// ListOverdue returns non-terminal instances whose due date has passed,
// oldest deadline first.
func (r *InstanceRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE status IN (?, ?) AND due_date IS NOT NULL AND due_date <= ?
		ORDER BY due_date ASC
		LIMIT ?`

	return r.queryMany(ctx, query, models.StatusPending, models.StatusEscalated, cutoff, limit)
}

// CountByStatus aggregates instance counts per status.
func (r *InstanceRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM workflow_instances GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to count instances by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count instances: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *InstanceRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.WorkflowInstance, error) {
	instances, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	return instances[0], nil
}

func (r *InstanceRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query instances", zap.Error(err))
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func scanInstance(rows *sql.Rows) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	var dueDate, completedAt sql.NullTime

	err := rows.Scan(
		&instance.ID,
		&instance.SubjectID,
		&instance.WorkflowType,
		&instance.CurrentStep,
		&instance.CurrentApproverRole,
		&instance.CurrentApproverID,
		&instance.Status,
		&instance.PreviousStep,
		&instance.NextStepHint,
		&instance.Priority,
		&instance.CostFacts.EstimatedCost,
		&instance.CostFacts.ActualCost,
		&instance.CostFacts.IsOverBudget,
		&instance.CostFacts.OverBudgetReason,
		&dueDate,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	if dueDate.Valid {
		instance.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	return &instance, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
