// Package metering implements daily quota enforcement for metered features.
// The Enforcer is the single entry point feature handlers call before
// performing an expensive action; handlers never touch the counter store
// directly.
//
// Per (user, feature) counter lifecycle: a counter from a previous day is
// stale until the first touch of the new day resets it to zero; increments
// then advance it until the plan limit, after which every attempt is denied
// until the next day rolls over. There is no background sweep for the
// durable counters; resets are lazy.
package metering

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptforge/internal/billing"
	"promptforge/internal/types"
)

// recentLogLimit bounds the audit entries returned with a status read.
const recentLogLimit = 20

// auditTimeout bounds the background audit insert so an abandoned write
// cannot hold a connection indefinitely.
const auditTimeout = 5 * time.Second

// UsageStore abstracts the durable per-user daily counters.
// Implemented by db.DailyUsageRepo.
type UsageStore interface {
	// ResetIfStale zeroes counters whose window predates the current UTC day.
	ResetIfStale(ctx context.Context, userID string) error

	// TryIncrement atomically increments the counter if below limit
	// (0 = unlimited) and reports whether the action is allowed.
	TryIncrement(ctx context.Context, userID string, feature types.FeatureType, limit int) (bool, error)

	// Counts returns today's count per metered feature, resetting stale
	// windows first.
	Counts(ctx context.Context, userID string) (map[types.FeatureType]int, error)
}

// AuditLog abstracts the append-only metering history.
// Implemented by db.UsageLogRepo.
type AuditLog interface {
	Record(ctx context.Context, entry *types.UsageLogEntry) error
	Recent(ctx context.Context, userID string, limit int) ([]types.UsageLogEntry, error)
}

// Enforcer orchestrates the plan registry, the counter store, and the audit
// log into a single "is this action allowed; if so, record it" operation.
type Enforcer struct {
	plans  billing.PlanRegistry
	store  UsageStore
	audit  AuditLog
	logger *slog.Logger

	// audits tracks in-flight background audit writes so shutdown and tests
	// can wait for them.
	audits sync.WaitGroup
}

// NewEnforcer creates an Enforcer. All dependencies are required except the
// logger, which defaults to slog.Default().
func NewEnforcer(plans billing.PlanRegistry, store UsageStore, audit AuditLog, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		plans:  plans,
		store:  store,
		audit:  audit,
		logger: logger,
	}
}

// Enforce checks and records one use of a metered feature for the user.
//
// It resets stale counters, resolves the user's plan limit, and attempts an
// atomic increment-with-ceiling. A denial returns a quota_exceeded AppError
// carrying the feature and its limit; that answer is final for the calendar
// day. On success the audit entry is written asynchronously, best-effort:
// metering enforcement never fails because audit logging failed.
//
// The metadata is attached to the audit entry and not otherwise interpreted.
func (e *Enforcer) Enforce(ctx context.Context, user *types.User, feature types.FeatureType, metadata map[string]any) error {
	if err := e.store.ResetIfStale(ctx, user.ID); err != nil {
		return err
	}

	limits := e.plans.GetLimits(user.Plan)
	limit := limits.LimitFor(feature)

	allowed, err := e.store.TryIncrement(ctx, user.ID, feature, limit)
	if err != nil {
		return err
	}
	if !allowed {
		return types.NewQuotaExceededError(feature, limit)
	}

	e.recordAsync(user.ID, feature, metadata)
	return nil
}

// Status returns the read-only quota projection for display: the plan,
// today's count against the limit for every metered feature, and the most
// recent audit entries. The staleness reset happens as a side effect of the
// counter read; there is no other enforcement effect.
func (e *Enforcer) Status(ctx context.Context, user *types.User) (*types.PlanStatus, error) {
	counts, err := e.store.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	limits := e.plans.GetLimits(user.Plan)

	features := make([]types.FeatureUsage, 0, len(types.MeteredFeatures))
	for _, f := range types.MeteredFeatures {
		features = append(features, types.FeatureUsage{
			Feature: f,
			Used:    counts[f],
			Limit:   limits.LimitFor(f),
		})
	}

	recent, err := e.audit.Recent(ctx, user.ID, recentLogLimit)
	if err != nil {
		// The log is display garnish; a read failure downgrades the status
		// response rather than failing it.
		e.logger.Warn("usage log read failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		recent = nil
	}

	return &types.PlanStatus{
		Plan:      user.Plan,
		Features:  features,
		RecentLog: recent,
	}, nil
}

// recordAsync appends the audit entry on a background goroutine. Failures
// are logged for operators and swallowed; they must never block or abort the
// metered action they describe.
func (e *Enforcer) recordAsync(userID string, feature types.FeatureType, metadata map[string]any) {
	entry := &types.UsageLogEntry{
		ID:       "ulog_" + uuid.NewString(),
		UserID:   userID,
		Feature:  feature,
		Metadata: metadata,
	}

	e.audits.Add(1)
	go func() {
		defer e.audits.Done()

		// Detached from the request context: the metered action has already
		// been allowed, so request cancellation must not lose the entry.
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()

		if err := e.audit.Record(ctx, entry); err != nil {
			e.logger.Warn("usage log write failed",
				slog.String("user_id", userID),
				slog.String("feature", string(feature)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until all in-flight audit writes have finished. Called during
// graceful shutdown so buffered entries are not dropped.
func (e *Enforcer) Wait() {
	e.audits.Wait()
}
