// Package postgres holds the PostgreSQL-backed repositories. Execution plans
// are written as a jsonb payload next to a few queryable columns; the plan
// document itself is the source of truth and the columns exist for listing
// and filtering without deserializing every row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/orchestration"
)

// PlanRepo implements orchestration.PlanStore against PostgreSQL.
type PlanRepo struct{ db *sql.DB }

// NewPlanRepo creates a Postgres-backed plan repository.
func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

func (r *PlanRepo) SavePlan(ctx context.Context, plan *domain.ExecutionPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan %s: %w", plan.PlanID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_plans
			(plan_id, plan_type, resolved_type, channel_count, total_duration_ms, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (plan_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			resolved_type = EXCLUDED.resolved_type,
			channel_count = EXCLUDED.channel_count,
			total_duration_ms = EXCLUDED.total_duration_ms,
			payload = EXCLUDED.payload
	`, plan.PlanID, string(plan.Type), string(plan.ResolvedType),
		len(plan.Channels), plan.TotalDuration.Milliseconds(), payload, plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (r *PlanRepo) GetPlan(ctx context.Context, planID string) (*domain.ExecutionPlan, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM execution_plans WHERE plan_id = $1
	`, planID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, orchestration.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	var plan domain.ExecutionPlan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan %s: %w", planID, err)
	}
	return &plan, nil
}

func (r *PlanRepo) DeletePlan(ctx context.Context, planID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM execution_plans WHERE plan_id = $1`, planID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if affected == 0 {
		return orchestration.ErrNotFound
	}
	return nil
}

func (r *PlanRepo) ListPlans(ctx context.Context) ([]*domain.ExecutionPlan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM execution_plans ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.ExecutionPlan
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		var plan domain.ExecutionPlan
		if err := json.Unmarshal(payload, &plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}
