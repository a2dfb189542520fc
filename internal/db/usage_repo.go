package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"promptforge/internal/types"
)

// DailyUsageRepo provides data access for the daily_usage table: one durable
// counter per (user, feature) with a calendar-day window. The schema is
// created by the startup migrations; this repository assumes it exists.
//
// Day boundaries are computed database-side in UTC so that every process
// instance agrees on when a window rolls over.
type DailyUsageRepo struct {
	db DBTX
}

// NewDailyUsageRepo creates a new DailyUsageRepo backed by the given database
// connection (pool or transaction).
func NewDailyUsageRepo(db DBTX) *DailyUsageRepo {
	return &DailyUsageRepo{db: db}
}

// utcToday is the SQL expression for the start of the current UTC calendar day.
const utcToday = `(NOW() AT TIME ZONE 'utc')::date`

// ResetIfStale zeroes every counter for the user whose window started before
// the current UTC day. Callers must invoke this before any counter read or
// write in a request so stale counts are never observed. Counters already in
// today's window are untouched.
func (r *DailyUsageRepo) ResetIfStale(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE daily_usage
		 SET count = 0, window_start = `+utcToday+`
		 WHERE user_id = $1 AND window_start < `+utcToday,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reset stale usage counters", err)
	}
	return nil
}

// TryIncrement records one use of the feature if the counter is below limit,
// returning whether the action is allowed. A limit of 0 means unlimited.
//
// The increment-with-ceiling is a single conditional upsert, so the ceiling
// holds exactly even when concurrent requests race on the same counter: the
// row is created on first use, and the conditional UPDATE either bumps the
// count or affects no row, in which case RETURNING yields no rows and the
// action is denied.
//
// Callers must run ResetIfStale first in the same request; TryIncrement
// assumes the counter's window is current.
func (r *DailyUsageRepo) TryIncrement(ctx context.Context, userID string, feature types.FeatureType, limit int) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`INSERT INTO daily_usage (user_id, feature, count, window_start)
		 VALUES ($1, $2, 1, `+utcToday+`)
		 ON CONFLICT (user_id, feature) DO UPDATE
		 SET count = daily_usage.count + 1
		 WHERE $3 = 0 OR daily_usage.count < $3
		 RETURNING count`,
		userID,
		string(feature),
		limit,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conditional update matched no row: the counter is at the
			// ceiling. Denied without mutating state.
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage counter", err)
	}
	return true, nil
}

// Counts returns today's count per metered feature for the user. Features
// without a row yet report zero. The staleness reset is performed first so
// displayed numbers are never from a previous day.
func (r *DailyUsageRepo) Counts(ctx context.Context, userID string) (map[types.FeatureType]int, error) {
	if err := r.ResetIfStale(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT feature, count FROM daily_usage WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query usage counters", err)
	}
	defer rows.Close()

	counts := make(map[types.FeatureType]int, len(types.MeteredFeatures))
	for _, f := range types.MeteredFeatures {
		counts[f] = 0
	}
	for rows.Next() {
		var feature string
		var count int
		if err := rows.Scan(&feature, &count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan usage counter row", err)
		}
		counts[types.FeatureType(feature)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating usage counter rows", err)
	}

	return counts, nil
}

// ResetAll zeroes every counter for the user immediately, regardless of
// window age. Used by the plan-change flow inside the same transaction as
// the plan write.
func (r *DailyUsageRepo) ResetAll(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE daily_usage
		 SET count = 0, window_start = `+utcToday+`
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reset usage counters", err)
	}
	return nil
}
