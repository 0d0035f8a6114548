package models

// DecisionSignal is the transient input delivered to the execution
// coordinator for one instance. It is never persisted as its own entity; an
// accepted signal is folded into an instance mutation plus an audit entry,
// a rejected one leaves no trace in the store.
type DecisionSignal struct {
	InstanceID       int64    `json:"instance_id"`
	Action           string   `json:"action"`
	ClaimedRole      string   `json:"claimed_role"`
	ClaimedActorID   string   `json:"claimed_actor_id"`
	Comments         string   `json:"comments,omitempty"`
	CostOverride     *float64 `json:"cost_override,omitempty"`
	OverBudget       *bool    `json:"over_budget,omitempty"`
	OverBudgetReason string   `json:"over_budget_reason,omitempty"`
	EscalationReason string   `json:"escalation_reason,omitempty"`
}
