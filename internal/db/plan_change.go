package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"promptforge/internal/types"
)

// PlanTxManager executes the plan-change write: the user's plan and the reset
// of all their daily counters must land in one transaction so a half-applied
// change can never leave stale limits against a new plan.
type PlanTxManager struct {
	pool *pgxpool.Pool
}

// NewPlanTxManager creates a PlanTxManager over the connection pool.
func NewPlanTxManager(pool *pgxpool.Pool) *PlanTxManager {
	return &PlanTxManager{pool: pool}
}

// ChangePlan updates the user's plan tier and zeroes all of their daily usage
// counters atomically.
func (m *PlanTxManager) ChangePlan(ctx context.Context, userID string, plan types.PlanTier) error {
	return InTx(ctx, m.pool, func(tx DBTX) error {
		if err := NewUserRepository(tx).UpdatePlan(ctx, userID, plan); err != nil {
			return err
		}
		return NewDailyUsageRepo(tx).ResetAll(ctx, userID)
	})
}
