package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
	"github.com/tripdesk/travel-approval/internal/registry"
	"github.com/tripdesk/travel-approval/internal/workflow"
)

// WorkflowService is the surface of the workflow engine the HTTP layer needs.
type WorkflowService interface {
	Initiate(ctx context.Context, subjectID, workflowType string, estimatedCost float64) (*models.WorkflowInstance, error)
	Decide(ctx context.Context, instanceID int64, signal *models.DecisionSignal) (*models.WorkflowInstance, error)
	Instance(ctx context.Context, id int64) (*models.WorkflowInstance, error)
	InstanceBySubject(ctx context.Context, subjectID, workflowType string) (*models.WorkflowInstance, error)
	History(ctx context.Context, subjectID string) ([]*models.AuditEntry, error)
	Pending(ctx context.Context, role, approverID string) ([]*models.WorkflowInstance, error)
	Metrics(ctx context.Context) (*workflow.MetricsReport, error)
}

// RegistryService is the surface of the step registry the HTTP layer needs.
type RegistryService interface {
	Register(ctx context.Context, step *models.StepDefinition) error
	ActiveSteps(ctx context.Context, workflowType string) ([]*models.StepDefinition, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflows WorkflowService
	registry  RegistryService
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(workflows WorkflowService, registry RegistryService, logger *zap.Logger) *Handlers {
	return &Handlers{
		workflows: workflows,
		registry:  registry,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// InitiateRequest is the body of POST /api/workflows
type InitiateRequest struct {
	SubjectID     string  `json:"subject_id" binding:"required"`
	WorkflowType  string  `json:"workflow_type" binding:"required"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// DecisionRequest is the body of POST /api/workflows/:id/decision
type DecisionRequest struct {
	Action           string   `json:"action" binding:"required"`
	ClaimedRole      string   `json:"claimed_role" binding:"required"`
	ClaimedActorID   string   `json:"claimed_actor_id"`
	Comments         string   `json:"comments"`
	CostOverride     *float64 `json:"cost_override"`
	OverBudget       *bool    `json:"over_budget"`
	OverBudgetReason string   `json:"over_budget_reason"`
	EscalationReason string   `json:"escalation_reason"`
}

// RegisterStepRequest is the body of POST /api/steps
type RegisterStepRequest struct {
	WorkflowType         string `json:"workflow_type" binding:"required"`
	StepName             string `json:"step_name" binding:"required"`
	ApproverRole         string `json:"approver_role" binding:"required"`
	SequenceOrder        int    `json:"sequence_order" binding:"required"`
	Mandatory            bool   `json:"mandatory"`
	TimeLimitHours       int    `json:"time_limit_hours"`
	AutoApproveOnTimeout bool   `json:"auto_approve_on_timeout"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Initiate handles POST /api/workflows
func (h *Handlers) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	instance, err := h.workflows.Initiate(c.Request.Context(), req.SubjectID, req.WorkflowType, req.EstimatedCost)
	if err != nil {
		h.renderError(c, err, "failed to initiate workflow")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// Decide handles POST /api/workflows/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	signal := &models.DecisionSignal{
		InstanceID:       id,
		Action:           req.Action,
		ClaimedRole:      req.ClaimedRole,
		ClaimedActorID:   req.ClaimedActorID,
		Comments:         req.Comments,
		CostOverride:     req.CostOverride,
		OverBudget:       req.OverBudget,
		OverBudgetReason: req.OverBudgetReason,
		EscalationReason: req.EscalationReason,
	}

	instance, err := h.workflows.Decide(c.Request.Context(), id, signal)
	if err != nil {
		h.renderError(c, err, "failed to apply decision")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// GetInstance handles GET /api/workflows/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	instance, err := h.workflows.Instance(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err, "failed to get instance")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// GetInstanceBySubject handles GET /api/subjects/:id/workflows?type=
func (h *Handlers) GetInstanceBySubject(c *gin.Context) {
	workflowType := c.DefaultQuery("type", models.WorkflowPreTravel)

	instance, err := h.workflows.InstanceBySubject(c.Request.Context(), c.Param("id"), workflowType)
	if err != nil {
		h.renderError(c, err, "failed to get instance")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// GetHistory handles GET /api/subjects/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.workflows.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err, "failed to get history")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// ListPending handles GET /api/pending?role=&approver_id=
func (h *Handlers) ListPending(c *gin.Context) {
	instances, err := h.workflows.Pending(c.Request.Context(), c.Query("role"), c.Query("approver_id"))
	if err != nil {
		h.renderError(c, err, "failed to list pending instances")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// GetMetrics handles GET /api/metrics
func (h *Handlers) GetMetrics(c *gin.Context) {
	report, err := h.workflows.Metrics(c.Request.Context())
	if err != nil {
		h.renderError(c, err, "failed to aggregate metrics")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ListSteps handles GET /api/steps?type=
func (h *Handlers) ListSteps(c *gin.Context) {
	workflowType := c.DefaultQuery("type", models.WorkflowPreTravel)

	steps, err := h.registry.ActiveSteps(c.Request.Context(), workflowType)
	if err != nil {
		h.renderError(c, err, "failed to list steps")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// RegisterStep handles POST /api/steps
func (h *Handlers) RegisterStep(c *gin.Context) {
	var req RegisterStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	step := &models.StepDefinition{
		WorkflowType:         req.WorkflowType,
		StepName:             req.StepName,
		ApproverRole:         req.ApproverRole,
		SequenceOrder:        req.SequenceOrder,
		Mandatory:            req.Mandatory,
		TimeLimit:            time.Duration(req.TimeLimitHours) * time.Hour,
		AutoApproveOnTimeout: req.AutoApproveOnTimeout,
	}

	if err := h.registry.Register(c.Request.Context(), step); err != nil {
		h.renderError(c, err, "failed to register step")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: step})
}

func (h *Handlers) instanceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid instance ID"})
		return 0, false
	}
	return id, true
}

// renderError maps engine errors to HTTP statuses: authorization failures to
// 403, lost races and duplicates to 409, lookups to 404, bad input to 400.
func (h *Handlers) renderError(c *gin.Context, err error, fallback string) {
	switch {
	case workflow.IsAuthorizationError(err):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: err.Error()})
	case workflow.IsConflictError(err):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, workflow.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, workflow.ErrInvalidAction),
		errors.Is(err, workflow.ErrSubjectUnavailable),
		errors.Is(err, registry.ErrDuplicateSequenceOrder):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: fallback})
	}
}
