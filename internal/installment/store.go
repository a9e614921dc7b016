package installment

import (
	"context"

	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
)

// Store persists installment plan aggregates. Implementations must serialize
// Update calls per plan; plans are independent units of concurrency.
type Store interface {
	// Create inserts a new plan.
	Create(ctx context.Context, plan *Plan) error

	// Get returns a copy of the plan, or a NotFound error.
	Get(ctx context.Context, planID id.PlanID) (*Plan, error)

	// Update applies mutate to the current aggregate under per-plan
	// serialization. When mutate returns an error nothing is persisted.
	Update(ctx context.Context, planID id.PlanID, mutate func(*Plan) error) (*Plan, error)

	// ListActiveByLead returns every ACTIVE plan for the lead.
	ListActiveByLead(ctx context.Context, leadID id.LeadID) ([]*Plan, error)

	// ListActive returns every ACTIVE plan. Used by the overdue sweeper.
	ListActive(ctx context.Context) ([]*Plan, error)
}

func planNotFound(planID id.PlanID) error {
	return dErrors.New(dErrors.CodeNotFound, "installment plan %s not found", planID)
}
