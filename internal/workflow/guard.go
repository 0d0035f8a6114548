package workflow

import (
	"github.com/tripdesk/travel-approval/internal/models"
)

// Authorize validates that a decision signal comes from the actor the current
// step is waiting on. Both checks are mandatory and no state is touched
// before they pass. The guard is re-evaluated on every signal rather than
// cached, because the assigned approver changes between steps.
func Authorize(instance *models.WorkflowInstance, signal *models.DecisionSignal) error {
	if signal.ClaimedRole != instance.CurrentApproverRole {
		return ErrRoleMismatch
	}

	if models.IsIdentityScopedRole(instance.CurrentApproverRole) &&
		instance.CurrentApproverID != "" &&
		signal.ClaimedActorID != instance.CurrentApproverID {
		return ErrActorMismatch
	}

	return nil
}
