package db

import (
	"context"

	"promptforge/internal/types"
)

// UsageLogRepo provides data access for the usage_log table: the append-only
// history of metering events. The enforcement path only ever inserts; rows
// are never mutated or deleted here (history purges are a separate admin
// operation).
type UsageLogRepo struct {
	db DBTX
}

// NewUsageLogRepo creates a new UsageLogRepo backed by the given database
// connection (pool or transaction).
func NewUsageLogRepo(db DBTX) *UsageLogRepo {
	return &UsageLogRepo{db: db}
}

// Record appends one metering event. The caller sets the ID (prefixed UUID,
// e.g. "ulog_..."); created_at is assigned by the database.
func (r *UsageLogRepo) Record(ctx context.Context, entry *types.UsageLogEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_log (id, user_id, feature, metadata, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		entry.ID,
		entry.UserID,
		string(entry.Feature),
		entry.Metadata,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record usage log entry", err)
	}
	return nil
}

// Recent returns at most limit entries for the user, newest first. This is a
// plain snapshot read for display; it does not paginate.
func (r *UsageLogRepo) Recent(ctx context.Context, userID string, limit int) ([]types.UsageLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, feature, metadata, created_at
		 FROM usage_log
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query usage log", err)
	}
	defer rows.Close()

	var entries []types.UsageLogEntry
	for rows.Next() {
		var e types.UsageLogEntry
		var feature string
		if err := rows.Scan(&e.ID, &e.UserID, &feature, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan usage log row", err)
		}
		e.Feature = types.FeatureType(feature)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating usage log rows", err)
	}

	return entries, nil
}
