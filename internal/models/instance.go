package models

import "time"

// CostFacts holds the business facts accumulated while an instance is in
// flight. The over-budget flag drives the finance branch in pre-travel
// routing; post-travel records it for reporting only.
type CostFacts struct {
	EstimatedCost    float64 `json:"estimated_cost"`
	ActualCost       float64 `json:"actual_cost"`
	IsOverBudget     bool    `json:"is_over_budget"`
	OverBudgetReason string  `json:"over_budget_reason,omitempty"`
}

// WorkflowInstance is the durable state of one running approval. It is owned
// by the execution coordinator; every accepted transition bumps Version, and
// writes are guarded by an optimistic version check so two concurrent
// decisions can never both succeed.
type WorkflowInstance struct {
	ID                  int64      `json:"id"`
	SubjectID           string     `json:"subject_id"`
	WorkflowType        string     `json:"workflow_type"`
	CurrentStep         string     `json:"current_step"`
	CurrentApproverRole string     `json:"current_approver_role"`
	CurrentApproverID   string     `json:"current_approver_id,omitempty"`
	Status              string     `json:"status"`
	PreviousStep        string     `json:"previous_step,omitempty"`
	NextStepHint        string     `json:"next_step_hint,omitempty"`
	Priority            int        `json:"priority"`
	CostFacts           CostFacts  `json:"cost_facts"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true once the instance has reached a terminal status.
func (i *WorkflowInstance) IsTerminal() bool {
	return IsTerminalStatus(i.Status)
}

// AcceptsSignals returns true while the instance can still honor a decision.
// An escalated instance is still waiting on its current step.
func (i *WorkflowInstance) AcceptsSignals() bool {
	return i.Status == StatusPending || i.Status == StatusEscalated
}
