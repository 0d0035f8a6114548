package models

// Workflow type constants
const (
	WorkflowPreTravel  = "PRE_TRAVEL"
	WorkflowPostTravel = "POST_TRAVEL"
)

// Instance status constants
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusReturned  = "RETURNED"
	StatusEscalated = "ESCALATED"
	StatusCompleted = "COMPLETED"
)

// Approver role constants
const (
	RoleEmployee   = "EMPLOYEE"
	RoleManager    = "MANAGER"
	RoleTravelDesk = "TRAVEL_DESK"
	RoleHR         = "HR"
	RoleFinance    = "FINANCE"
	RoleSystem     = "SYSTEM"
)

// Action constants for decision signals and audit entries
const (
	ActionSubmit         = "SUBMIT"
	ActionApprove        = "APPROVE"
	ActionReject         = "REJECT"
	ActionReturn         = "RETURN"
	ActionEscalate       = "ESCALATE"
	ActionUploadArtifact = "UPLOAD_ARTIFACT"
)

// Pre-travel step name constants
const (
	StepManagerApproval   = "MANAGER_APPROVAL"
	StepTravelDeskCheck   = "TRAVEL_DESK_CHECK"
	StepFinanceApproval   = "FINANCE_APPROVAL"
	StepHRApproval        = "HR_APPROVAL"
	StepTravelDeskBooking = "TRAVEL_DESK_BOOKING"
	StepHRCompliance      = "HR_COMPLIANCE"
	StepFinanceFinal      = "FINANCE_FINAL"
)

// Post-travel step name constants
const (
	StepBillUpload           = "BILL_UPLOAD"
	StepTravelDeskBillReview = "TRAVEL_DESK_BILL_REVIEW"
	StepFinanceReimbursement = "FINANCE_REIMBURSEMENT"
)

// SystemActorID identifies the synthetic actor used for timeout auto-approval.
const SystemActorID = "system"

var terminalStatuses = map[string]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusReturned:  true,
	StatusCompleted: true,
}

// IsTerminalStatus returns true if no further signals are honored for the status.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

var validActions = map[string]bool{
	ActionSubmit:         true,
	ActionApprove:        true,
	ActionReject:         true,
	ActionReturn:         true,
	ActionEscalate:       true,
	ActionUploadArtifact: true,
}

// IsValidAction returns true if the action is a recognized signal action.
func IsValidAction(action string) bool {
	return validActions[action]
}

var validWorkflowTypes = map[string]bool{
	WorkflowPreTravel:  true,
	WorkflowPostTravel: true,
}

// IsValidWorkflowType returns true if the workflow type is recognized.
func IsValidWorkflowType(workflowType string) bool {
	return validWorkflowTypes[workflowType]
}

// IdentityScopedRoles are roles whose approver is a specific person, not a pool.
// Decisions for these roles must match the assigned approver identity.
var identityScopedRoles = map[string]bool{
	RoleManager: true,
}

// IsIdentityScopedRole returns true if decisions for the role must come from
// the specific approver assigned to the instance.
func IsIdentityScopedRole(role string) bool {
	return identityScopedRoles[role]
}
