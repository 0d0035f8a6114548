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

// AuditRepository reads the append-only audit log. Appends happen inside the
// instance repository's transactions (insertAuditEntry) so the log cannot
// drift from instance state.
type AuditRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// HistoryForSubject returns all audit entries for a subject, newest first.
func (r *AuditRepository) HistoryForSubject(ctx context.Context, subjectID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, instance_id, subject_id, actor_role, actor_id, action, step, comments, timestamp
		FROM audit_entries
		WHERE subject_id = ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		r.logger.Error("Failed to get history",
			zap.String("subject_id", subjectID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.SubjectID,
			&entry.ActorRole,
			&entry.ActorID,
			&entry.Action,
			&entry.Step,
			&entry.Comments,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// ApprovalDurations returns, for each completed instance, the elapsed time
// between its SUBMIT entry and its completion timestamp.
func (r *AuditRepository) ApprovalDurations(ctx context.Context) ([]time.Duration, error) {
	query := `
		SELECT a.timestamp, i.completed_at
		FROM workflow_instances i
		JOIN audit_entries a ON a.instance_id = i.id AND a.action = ?
		WHERE i.completed_at IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query, models.ActionSubmit)
	if err != nil {
		r.logger.Error("Failed to compute approval durations", zap.Error(err))
		return nil, fmt.Errorf("failed to compute approval durations: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var submitted, completed time.Time
		if err := rows.Scan(&submitted, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan duration row: %w", err)
		}
		durations = append(durations, completed.Sub(submitted))
	}

	return durations, rows.Err()
}

// insertAuditEntry appends an audit entry within an existing transaction.
func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			instance_id, subject_id, actor_role, actor_id, action, step, comments, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		entry.InstanceID,
		entry.SubjectID,
		entry.ActorRole,
		entry.ActorID,
		entry.Action,
		entry.Step,
		entry.Comments,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}
