package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
	"github.com/tripdesk/travel-approval/internal/workflow"
	"github.com/tripdesk/travel-approval/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "workflow.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "migrations")))
	return db
}

func pendingInstance(subjectID string) (*models.WorkflowInstance, *models.AuditEntry) {
	now := time.Now().UTC().Truncate(time.Second)
	due := now.Add(72 * time.Hour)

	instance := &models.WorkflowInstance{
		SubjectID:           subjectID,
		WorkflowType:        models.WorkflowPreTravel,
		CurrentStep:         models.StepManagerApproval,
		CurrentApproverRole: models.RoleManager,
		CurrentApproverID:   "mgr-42",
		Status:              models.StatusPending,
		NextStepHint:        models.StepTravelDeskCheck,
		CostFacts:           models.CostFacts{EstimatedCost: 1800},
		DueDate:             &due,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	entry := &models.AuditEntry{
		SubjectID: subjectID,
		ActorRole: models.RoleEmployee,
		ActorID:   "emp-7",
		Action:    models.ActionSubmit,
		Step:      models.StepManagerApproval,
		Timestamp: now,
	}
	return instance, entry
}

func TestInstanceRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	logger := zap.NewNop()
	instances := NewInstanceRepository(db, logger)
	audit := NewAuditRepository(db, logger)
	ctx := context.Background()

	instance, entry := pendingInstance("TR-1001")
	require.NoError(t, instances.Create(ctx, instance, entry))
	assert.NotZero(t, instance.ID)
	assert.Equal(t, instance.ID, entry.InstanceID)

	got, err := instances.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StepManagerApproval, got.CurrentStep)
	assert.Equal(t, models.StepTravelDeskCheck, got.NextStepHint)
	assert.Equal(t, 1800.0, got.CostFacts.EstimatedCost)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.DueDate)
	assert.Nil(t, got.CompletedAt)

	bySubject, err := instances.GetBySubject(ctx, "TR-1001", models.WorkflowPreTravel)
	require.NoError(t, err)
	require.NotNil(t, bySubject)
	assert.Equal(t, instance.ID, bySubject.ID)

	missing, err := instances.GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)

	history, err := audit.HistoryForSubject(ctx, "TR-1001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionSubmit, history[0].Action)
}

func TestInstanceRepository_Create_DuplicateSubjectType(t *testing.T) {
	db := newTestDB(t)
	instances := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	first, firstEntry := pendingInstance("TR-1001")
	require.NoError(t, instances.Create(ctx, first, firstEntry))

	second, secondEntry := pendingInstance("TR-1001")
	err := instances.Create(ctx, second, secondEntry)
	assert.ErrorIs(t, err, workflow.ErrDuplicateInstance)

	// The rolled-back creation must leave no audit entry behind.
	audit := NewAuditRepository(db, zap.NewNop())
	history, err := audit.HistoryForSubject(ctx, "TR-1001")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// A different workflow type for the same subject is fine.
	post, postEntry := pendingInstance("TR-1001")
	post.WorkflowType = models.WorkflowPostTravel
	post.CurrentStep = models.StepBillUpload
	post.CurrentApproverRole = models.RoleEmployee
	assert.NoError(t, instances.Create(ctx, post, postEntry))
}

func TestInstanceRepository_ApplyTransition_VersionGate(t *testing.T) {
	db := newTestDB(t)
	logger := zap.NewNop()
	instances := NewInstanceRepository(db, logger)
	audit := NewAuditRepository(db, logger)
	ctx := context.Background()

	instance, entry := pendingInstance("TR-1001")
	require.NoError(t, instances.Create(ctx, instance, entry))

	now := time.Now().UTC().Truncate(time.Second).Add(time.Minute)
	instance.PreviousStep = instance.CurrentStep
	instance.CurrentStep = models.StepTravelDeskCheck
	instance.CurrentApproverRole = models.RoleTravelDesk
	instance.CurrentApproverID = "travel-desk"
	instance.NextStepHint = models.StepFinanceApproval
	instance.UpdatedAt = now

	approveEntry := &models.AuditEntry{
		InstanceID: instance.ID,
		SubjectID:  instance.SubjectID,
		ActorRole:  models.RoleManager,
		ActorID:    "mgr-42",
		Action:     models.ActionApprove,
		Step:       models.StepManagerApproval,
		Timestamp:  now,
	}

	require.NoError(t, instances.ApplyTransition(ctx, instance, approveEntry, 1))
	assert.Equal(t, int64(2), instance.Version)

	stored, err := instances.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepTravelDeskCheck, stored.CurrentStep)
	assert.Equal(t, int64(2), stored.Version)

	// A write carrying the stale version must hit zero rows and leave both
	// the instance and the audit log untouched.
	staleEntry := &models.AuditEntry{
		InstanceID: instance.ID,
		SubjectID:  instance.SubjectID,
		ActorRole:  models.RoleManager,
		ActorID:    "mgr-42",
		Action:     models.ActionApprove,
		Step:       models.StepManagerApproval,
		Timestamp:  now.Add(time.Minute),
	}
	err = instances.ApplyTransition(ctx, instance, staleEntry, 1)
	assert.ErrorIs(t, err, workflow.ErrStateConflict)

	stored, err = instances.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	history, err := audit.HistoryForSubject(ctx, "TR-1001")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ActionApprove, history[0].Action)
	assert.Equal(t, models.ActionSubmit, history[1].Action)
}

func TestInstanceRepository_ListPendingAndOverdue(t *testing.T) {
	db := newTestDB(t)
	instances := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	instance, entry := pendingInstance("TR-1001")
	overdue := time.Now().UTC().Add(-time.Hour)
	instance.DueDate = &overdue
	require.NoError(t, instances.Create(ctx, instance, entry))

	pending, err := instances.ListPending(ctx, models.RoleManager, "mgr-42")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, instance.ID, pending[0].ID)

	pending, err = instances.ListPending(ctx, models.RoleFinance, "")
	require.NoError(t, err)
	assert.Empty(t, pending)

	late, err := instances.ListOverdue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, instance.ID, late[0].ID)

	counts, err := instances.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StatusPending])
}
