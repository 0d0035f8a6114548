package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
)

type memStepStore struct {
	steps []*models.StepDefinition
}

func (s *memStepStore) Insert(ctx context.Context, step *models.StepDefinition) error {
	copied := *step
	s.steps = append(s.steps, &copied)
	return nil
}

func (s *memStepStore) ListActive(ctx context.Context, workflowType string) ([]*models.StepDefinition, error) {
	var out []*models.StepDefinition
	for _, step := range s.steps {
		if step.Active && step.WorkflowType == workflowType {
			out = append(out, step)
		}
	}
	return out, nil
}

func (s *memStepStore) Deactivate(ctx context.Context, workflowType, stepName string) error {
	for _, step := range s.steps {
		if step.WorkflowType == workflowType && step.StepName == stepName {
			step.Active = false
			return nil
		}
	}
	return nil
}

func testStep(workflowType, name, role string, order int) *models.StepDefinition {
	return &models.StepDefinition{
		WorkflowType:  workflowType,
		StepName:      name,
		ApproverRole:  role,
		SequenceOrder: order,
		Mandatory:     true,
		TimeLimit:     48 * time.Hour,
	}
}

func TestRegister(t *testing.T) {
	store := &memStepStore{}
	reg := New(store, zap.NewNop())
	ctx := context.Background()

	err := reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepManagerApproval, models.RoleManager, 1))
	require.NoError(t, err)

	steps, err := reg.ActiveSteps(ctx, models.WorkflowPreTravel)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Active)
}

func TestRegister_DuplicateSequenceOrder(t *testing.T) {
	store := &memStepStore{}
	reg := New(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepManagerApproval, models.RoleManager, 1)))

	err := reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepTravelDeskCheck, models.RoleTravelDesk, 1))
	assert.ErrorIs(t, err, ErrDuplicateSequenceOrder)

	steps, err := reg.ActiveSteps(ctx, models.WorkflowPreTravel)
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestRegister_SameOrderAcrossWorkflowTypes(t *testing.T) {
	store := &memStepStore{}
	reg := New(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepManagerApproval, models.RoleManager, 1)))
	assert.NoError(t, reg.Register(ctx, testStep(models.WorkflowPostTravel, models.StepBillUpload, models.RoleEmployee, 1)))
}

func TestRegister_Validation(t *testing.T) {
	reg := New(&memStepStore{}, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		step *models.StepDefinition
	}{
		{"missing workflow type", testStep("", models.StepManagerApproval, models.RoleManager, 1)},
		{"missing step name", testStep(models.WorkflowPreTravel, "", models.RoleManager, 1)},
		{"missing role", testStep(models.WorkflowPreTravel, models.StepManagerApproval, "", 1)},
		{"zero order", testStep(models.WorkflowPreTravel, models.StepManagerApproval, models.RoleManager, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, reg.Register(ctx, tt.step))
		})
	}
}

func TestDeactivate_FreesSequenceOrder(t *testing.T) {
	store := &memStepStore{}
	reg := New(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepHRApproval, models.RoleHR, 4)))
	require.NoError(t, reg.Deactivate(ctx, models.WorkflowPreTravel, models.StepHRApproval))

	// The retired step no longer blocks its order.
	assert.NoError(t, reg.Register(ctx, testStep(models.WorkflowPreTravel, "HR_POLICY_REVIEW", models.RoleHR, 4)))

	steps, err := reg.ActiveSteps(ctx, models.WorkflowPreTravel)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "HR_POLICY_REVIEW", steps[0].StepName)
}

func TestValidate(t *testing.T) {
	store := &memStepStore{}
	reg := New(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepManagerApproval, models.RoleManager, 1)))
	require.NoError(t, reg.Register(ctx, testStep(models.WorkflowPreTravel, models.StepTravelDeskCheck, models.RoleTravelDesk, 2)))

	ok, err := reg.Validate(ctx, models.WorkflowPreTravel)
	require.NoError(t, err)
	assert.True(t, ok)

	// Force a conflicting row in behind the registry's duplicate check.
	store.steps = append(store.steps, &models.StepDefinition{
		WorkflowType:  models.WorkflowPreTravel,
		StepName:      "ROGUE_STEP",
		ApproverRole:  models.RoleFinance,
		SequenceOrder: 2,
		Active:        true,
	})

	ok, err = reg.Validate(ctx, models.WorkflowPreTravel)
	require.NoError(t, err)
	assert.False(t, ok)
}
