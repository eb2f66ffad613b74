package orchestration

import (
	"context"

	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// PlanStore persists built execution plans so they can be scheduled,
// inspected, or cancelled later. Implementations report ErrNotFound for
// unknown plan ids.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *domain.ExecutionPlan) error
	GetPlan(ctx context.Context, planID string) (*domain.ExecutionPlan, error)
	DeletePlan(ctx context.Context, planID string) error
	ListPlans(ctx context.Context) ([]*domain.ExecutionPlan, error)
}
