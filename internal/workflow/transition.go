package workflow

import (
	"github.com/tripdesk/travel-approval/internal/models"
)

// branchFunc names the step a given step routes to, based on the facts
// accumulated so far. An empty result means "use the default next-in-sequence
// rule".
type branchFunc func(facts models.CostFacts) string

// branchRules layers named-step routing on top of the default sequence-order
// rule, keyed by (workflow type, step name). Keeping the overrides as data
// avoids scattering routing decisions across the coordinator.
var branchRules = map[string]map[string]branchFunc{
	models.WorkflowPreTravel: {
		models.StepManagerApproval: staticBranch(models.StepTravelDeskCheck),
		models.StepTravelDeskCheck: func(facts models.CostFacts) string {
			if facts.IsOverBudget {
				return models.StepFinanceApproval
			}
			return models.StepHRApproval
		},
		models.StepFinanceApproval:   staticBranch(models.StepTravelDeskBooking),
		models.StepTravelDeskBooking: staticBranch(models.StepHRCompliance),
		models.StepHRCompliance:      staticBranch(models.StepFinanceFinal),
	},
	models.WorkflowPostTravel: {
		// Both budget branches converge on finance; the over-budget fact is
		// still recorded for reporting.
		models.StepTravelDeskBillReview: staticBranch(models.StepFinanceReimbursement),
	},
}

func staticBranch(stepName string) branchFunc {
	return func(models.CostFacts) string { return stepName }
}

// NextStep computes the step that follows currentStep for the given workflow
// type and facts. steps must be the active steps of the workflow type in
// ascending sequence order. A nil result means the workflow is past its last
// step and the instance is terminal.
//
// A named branch whose target is absent from the active list (disabled in the
// registry) falls back to next-in-sequence, so registry pruning never strands
// an instance.
func NextStep(workflowType, currentStep string, facts models.CostFacts, steps []*models.StepDefinition) (*models.StepDefinition, error) {
	current := findStep(steps, currentStep)
	if current == nil {
		return nil, ErrStepNotFound
	}

	if rules, ok := branchRules[workflowType]; ok {
		if branch, ok := rules[currentStep]; ok {
			if target := branch(facts); target != "" {
				if def := findStep(steps, target); def != nil {
					return def, nil
				}
			}
		}
	}

	return nextInSequence(steps, current.SequenceOrder), nil
}

// FollowingStep returns the step after stepName by sequence order alone,
// ignoring branch rules. Used to record a next-step hint on the instance so
// in-flight runs survive registry reconfiguration.
func FollowingStep(steps []*models.StepDefinition, stepName string) *models.StepDefinition {
	current := findStep(steps, stepName)
	if current == nil {
		return nil
	}
	return nextInSequence(steps, current.SequenceOrder)
}

// resumeAfterPrunedStep routes an instance whose current step is no longer in
// the active list. Registry reconfiguration must not strand in-flight runs:
// the instance continues against the snapshot it recorded, preferring the
// stored next-step hint, then the step following its previous one. A nil
// result is terminal.
func resumeAfterPrunedStep(instance *models.WorkflowInstance, steps []*models.StepDefinition) *models.StepDefinition {
	if hinted := findStep(steps, instance.NextStepHint); hinted != nil {
		return hinted
	}
	if prev := findStep(steps, instance.PreviousStep); prev != nil {
		return nextInSequence(steps, prev.SequenceOrder)
	}
	return nil
}

func findStep(steps []*models.StepDefinition, name string) *models.StepDefinition {
	for _, s := range steps {
		if s.StepName == name {
			return s
		}
	}
	return nil
}

func nextInSequence(steps []*models.StepDefinition, after int) *models.StepDefinition {
	var next *models.StepDefinition
	for _, s := range steps {
		if s.SequenceOrder <= after {
			continue
		}
		if next == nil || s.SequenceOrder < next.SequenceOrder {
			next = s
		}
	}
	return next
}
