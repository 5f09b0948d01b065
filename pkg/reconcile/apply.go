package reconcile

import (
	"context"
	"fmt"

	"github.com/raporhub/raporhub/pkg/observability"
)

// GrantWriter mutates a user's grant set at the authority
type GrantWriter interface {
	AddGrants(ctx context.Context, userID int64, reportIDs []int64) error
	RemoveGrants(ctx context.Context, userID int64, reportIDs []int64) error
}

// Applier submits computed changes to the grant store
type Applier struct {
	store   GrantWriter
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewApplier creates an applier. metrics may be nil.
func NewApplier(store GrantWriter, logger *observability.Logger, metrics *observability.Metrics) *Applier {
	return &Applier{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Apply submits the changes, removes first and then adds. The ordering makes
// an off-then-on toggle of the same report inside one batch converge to
// "granted" regardless of how the diff was computed.
//
// The two halves are independent operations on an external store with no
// cross-operation transaction, so a remove failure does not stop the add
// half: partial application is surfaced as a *PartialError rather than
// silently aborting the surviving half.
func (a *Applier) Apply(ctx context.Context, userID int64, ch Changes) error {
	if ch.Empty() {
		return nil
	}

	var removeErr, addErr error
	if len(ch.ToRemove) > 0 {
		removeErr = a.store.RemoveGrants(ctx, userID, ch.ToRemove)
	}
	if len(ch.ToAdd) > 0 {
		addErr = a.store.AddGrants(ctx, userID, ch.ToAdd)
	}

	a.record(userID, ch, removeErr, addErr)

	switch {
	case removeErr == nil && addErr == nil:
		return nil
	case partialOutcome(ch, removeErr, addErr):
		return &PartialError{
			UserID:    userID,
			ToAdd:     ch.ToAdd,
			ToRemove:  ch.ToRemove,
			AddErr:    addErr,
			RemoveErr: removeErr,
		}
	case removeErr != nil && addErr != nil:
		return fmt.Errorf("apply for user %d failed entirely: remove: %v; add: %w", userID, removeErr, addErr)
	case removeErr != nil:
		return fmt.Errorf("apply for user %d failed: remove: %w", userID, removeErr)
	default:
		return fmt.Errorf("apply for user %d failed: add: %w", userID, addErr)
	}
}

// partialOutcome reports whether one half failed while the other half was
// actually attempted and succeeded. A failure of the only requested half is
// a total failure, not a partial one: nothing was applied.
func partialOutcome(ch Changes, removeErr, addErr error) bool {
	if removeErr != nil && addErr == nil {
		return len(ch.ToAdd) > 0
	}
	if addErr != nil && removeErr == nil {
		return len(ch.ToRemove) > 0
	}
	return false
}

func (a *Applier) record(userID int64, ch Changes, removeErr, addErr error) {
	outcome := "success"
	switch {
	case partialOutcome(ch, removeErr, addErr):
		outcome = "partial"
	case removeErr != nil || addErr != nil:
		outcome = "failure"
	}

	if a.metrics != nil {
		a.metrics.ReconcileAppliesTotal.WithLabelValues(outcome).Inc()
		if addErr == nil {
			a.metrics.GrantsAddedTotal.Add(float64(len(ch.ToAdd)))
		}
		if removeErr == nil {
			a.metrics.GrantsRemovedTotal.Add(float64(len(ch.ToRemove)))
		}
	}

	log := a.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"added":   len(ch.ToAdd),
		"removed": len(ch.ToRemove),
	})
	switch outcome {
	case "success":
		log.Info("Applied grant changes")
	case "partial":
		log.WithError(firstErr(removeErr, addErr)).Warn("Partially applied grant changes")
	default:
		log.WithError(firstErr(removeErr, addErr)).Error("Failed to apply grant changes")
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
