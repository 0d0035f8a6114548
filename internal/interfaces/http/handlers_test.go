package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
	"github.com/tripdesk/travel-approval/internal/registry"
	"github.com/tripdesk/travel-approval/internal/workflow"
)

type stubWorkflows struct {
	initiateFunc func(ctx context.Context, subjectID, workflowType string, estimatedCost float64) (*models.WorkflowInstance, error)
	decideFunc   func(ctx context.Context, instanceID int64, signal *models.DecisionSignal) (*models.WorkflowInstance, error)
	instanceFunc func(ctx context.Context, id int64) (*models.WorkflowInstance, error)
}

func (s *stubWorkflows) Initiate(ctx context.Context, subjectID, workflowType string, estimatedCost float64) (*models.WorkflowInstance, error) {
	return s.initiateFunc(ctx, subjectID, workflowType, estimatedCost)
}

func (s *stubWorkflows) Decide(ctx context.Context, instanceID int64, signal *models.DecisionSignal) (*models.WorkflowInstance, error) {
	return s.decideFunc(ctx, instanceID, signal)
}

func (s *stubWorkflows) Instance(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	return s.instanceFunc(ctx, id)
}

func (s *stubWorkflows) InstanceBySubject(ctx context.Context, subjectID, workflowType string) (*models.WorkflowInstance, error) {
	return nil, workflow.ErrInstanceNotFound
}

func (s *stubWorkflows) History(ctx context.Context, subjectID string) ([]*models.AuditEntry, error) {
	return nil, nil
}

func (s *stubWorkflows) Pending(ctx context.Context, role, approverID string) ([]*models.WorkflowInstance, error) {
	return nil, nil
}

func (s *stubWorkflows) Metrics(ctx context.Context) (*workflow.MetricsReport, error) {
	return &workflow.MetricsReport{StatusCounts: map[string]int64{}}, nil
}

type stubRegistry struct {
	registerFunc func(ctx context.Context, step *models.StepDefinition) error
}

func (s *stubRegistry) Register(ctx context.Context, step *models.StepDefinition) error {
	if s.registerFunc != nil {
		return s.registerFunc(ctx, step)
	}
	return nil
}

func (s *stubRegistry) ActiveSteps(ctx context.Context, workflowType string) ([]*models.StepDefinition, error) {
	return nil, nil
}

func newTestServer(workflows WorkflowService, reg RegistryService) *Server {
	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, workflows, reg, zap.NewNop())
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(&stubWorkflows{}, &stubRegistry{})

	rec, resp := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestInitiate(t *testing.T) {
	workflows := &stubWorkflows{
		initiateFunc: func(ctx context.Context, subjectID, workflowType string, estimatedCost float64) (*models.WorkflowInstance, error) {
			assert.Equal(t, "TR-1001", subjectID)
			assert.Equal(t, models.WorkflowPreTravel, workflowType)
			return &models.WorkflowInstance{ID: 1, SubjectID: subjectID, Status: models.StatusPending}, nil
		},
	}
	server := newTestServer(workflows, &stubRegistry{})

	rec, resp := doJSON(t, server, http.MethodPost, "/api/workflows", InitiateRequest{
		SubjectID:    "TR-1001",
		WorkflowType: models.WorkflowPreTravel,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
}

func TestInitiate_MissingFields(t *testing.T) {
	server := newTestServer(&stubWorkflows{}, &stubRegistry{})

	rec, resp := doJSON(t, server, http.MethodPost, "/api/workflows", map[string]string{
		"subject_id": "TR-1001",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestDecide_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"role mismatch", workflow.ErrRoleMismatch, http.StatusForbidden},
		{"actor mismatch", workflow.ErrActorMismatch, http.StatusForbidden},
		{"state conflict", workflow.ErrStateConflict, http.StatusConflict},
		{"not pending", workflow.ErrNotPending, http.StatusConflict},
		{"duplicate instance", workflow.ErrDuplicateInstance, http.StatusConflict},
		{"not found", workflow.ErrInstanceNotFound, http.StatusNotFound},
		{"invalid action", workflow.ErrInvalidAction, http.StatusBadRequest},
		{"subject unavailable", workflow.ErrSubjectUnavailable, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflows := &stubWorkflows{
				decideFunc: func(ctx context.Context, instanceID int64, signal *models.DecisionSignal) (*models.WorkflowInstance, error) {
					return nil, tt.err
				},
			}
			server := newTestServer(workflows, &stubRegistry{})

			rec, resp := doJSON(t, server, http.MethodPost, "/api/workflows/1/decision", DecisionRequest{
				Action:      models.ActionApprove,
				ClaimedRole: models.RoleManager,
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestDecide_PassesSignalThrough(t *testing.T) {
	var got *models.DecisionSignal
	workflows := &stubWorkflows{
		decideFunc: func(ctx context.Context, instanceID int64, signal *models.DecisionSignal) (*models.WorkflowInstance, error) {
			got = signal
			return &models.WorkflowInstance{ID: instanceID, Status: models.StatusPending}, nil
		},
	}
	server := newTestServer(workflows, &stubRegistry{})

	over := true
	rec, _ := doJSON(t, server, http.MethodPost, "/api/workflows/7/decision", DecisionRequest{
		Action:           models.ActionApprove,
		ClaimedRole:      models.RoleTravelDesk,
		OverBudget:       &over,
		OverBudgetReason: "peak season fares",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.InstanceID)
	require.NotNil(t, got.OverBudget)
	assert.True(t, *got.OverBudget)
	assert.Equal(t, "peak season fares", got.OverBudgetReason)
}

func TestDecide_InvalidInstanceID(t *testing.T) {
	server := newTestServer(&stubWorkflows{}, &stubRegistry{})

	rec, _ := doJSON(t, server, http.MethodPost, "/api/workflows/abc/decision", DecisionRequest{
		Action:      models.ActionApprove,
		ClaimedRole: models.RoleManager,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetInstance_NotFound(t *testing.T) {
	workflows := &stubWorkflows{
		instanceFunc: func(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
			return nil, workflow.ErrInstanceNotFound
		},
	}
	server := newTestServer(workflows, &stubRegistry{})

	rec, _ := doJSON(t, server, http.MethodGet, "/api/workflows/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterStep(t *testing.T) {
	var registered *models.StepDefinition
	reg := &stubRegistry{
		registerFunc: func(ctx context.Context, step *models.StepDefinition) error {
			registered = step
			return nil
		},
	}
	server := newTestServer(&stubWorkflows{}, reg)

	rec, resp := doJSON(t, server, http.MethodPost, "/api/steps", RegisterStepRequest{
		WorkflowType:   models.WorkflowPreTravel,
		StepName:       "HR_POLICY_REVIEW",
		ApproverRole:   models.RoleHR,
		SequenceOrder:  8,
		TimeLimitHours: 24,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	require.NotNil(t, registered)
	assert.Equal(t, "HR_POLICY_REVIEW", registered.StepName)
	assert.Equal(t, float64(24), registered.TimeLimit.Hours())
}

func TestRegisterStep_DuplicateOrder(t *testing.T) {
	reg := &stubRegistry{
		registerFunc: func(ctx context.Context, step *models.StepDefinition) error {
			return registry.ErrDuplicateSequenceOrder
		},
	}
	server := newTestServer(&stubWorkflows{}, reg)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/steps", RegisterStepRequest{
		WorkflowType:  models.WorkflowPreTravel,
		StepName:      "HR_POLICY_REVIEW",
		ApproverRole:  models.RoleHR,
		SequenceOrder: 4,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
