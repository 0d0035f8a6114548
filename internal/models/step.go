package models

import "time"

// StepDefinition describes one stage of a workflow type: who decides, where
// it sits in the sequence, and how timeouts are handled. Definitions are
// immutable once published; reconfiguration deactivates a step rather than
// editing it in place.
type StepDefinition struct {
	ID                   int64         `json:"id"`
	WorkflowType         string        `json:"workflow_type"`
	StepName             string        `json:"step_name"`
	ApproverRole         string        `json:"approver_role"`
	SequenceOrder        int           `json:"sequence_order"`
	Mandatory            bool          `json:"mandatory"`
	TimeLimit            time.Duration `json:"time_limit"`
	AutoApproveOnTimeout bool          `json:"auto_approve_on_timeout"`
	Active               bool          `json:"active"`
	CreatedAt            time.Time     `json:"created_at"`
}
