// Package referral computes deduplicated invite counts from the event log and
// drives the per-user reward flag. The count is always recomputed from the
// full active event set, never incremented in place: concurrent appends and
// webhook redeliveries then converge to the same value on any interleaving.
package referral

import (
	"context"
	"fmt"

	"botfleet/internal/models"
)

const DefaultRequiredInvites = 5

// EventSource is the slice of the event log the counter reads.
type EventSource interface {
	ActiveReferrals(ctx context.Context, tenantID uint, inviterExternalID int64) ([]models.ReferralEvent, error)
}

// RewardStore loads and persists the reward slice of a user row. Persist is
// expected to be transactional at row level and to never downgrade an open
// reward.
type RewardStore interface {
	RewardState(ctx context.Context, tenantID uint, externalID int64) (models.RewardState, error)
	PersistRewardState(ctx context.Context, tenantID uint, externalID int64, st models.RewardState) error
}

type Counter struct {
	events   EventSource
	rewards  RewardStore
	required int
}

func NewCounter(events EventSource, rewards RewardStore, requiredInvites int) *Counter {
	if requiredInvites <= 0 {
		requiredInvites = DefaultRequiredInvites
	}
	return &Counter{
		events:   events,
		rewards:  rewards,
		required: requiredInvites,
	}
}

// RecountAndUpdate recomputes the inviter's deduplicated invite count and
// transitions the reward locked→open at the threshold. It is idempotent:
// re-running it over the same underlying events is a no-op, which is what
// makes the pipeline safe under at-least-once webhook delivery. An open
// reward is never reverted here.
func (c *Counter) RecountAndUpdate(ctx context.Context, tenantID uint, inviterExternalID int64) (models.RewardState, error) {
	events, err := c.events.ActiveReferrals(ctx, tenantID, inviterExternalID)
	if err != nil {
		return models.RewardState{}, fmt.Errorf("recount fetch failed for inviter %d: %w", inviterExternalID, err)
	}

	// One counted invite per distinct subject, however many log rows
	// redelivery produced for it.
	subjects := make(map[int64]struct{}, len(events))
	for _, ev := range events {
		if ev.SubjectExternalID == nil {
			continue
		}
		subjects[*ev.SubjectExternalID] = struct{}{}
	}

	st, err := c.rewards.RewardState(ctx, tenantID, inviterExternalID)
	if err != nil {
		return models.RewardState{}, fmt.Errorf("recount load failed for inviter %d: %w", inviterExternalID, err)
	}

	st.TotalInvited = len(subjects)
	if !st.Open() && st.TotalInvited >= c.required {
		st.RewardStatus = models.RewardOpen
		st.UnlockMethod = models.UnlockInvites
	}

	if err := c.rewards.PersistRewardState(ctx, tenantID, inviterExternalID, st); err != nil {
		return models.RewardState{}, fmt.Errorf("recount persist failed for inviter %d: %w", inviterExternalID, err)
	}
	return st, nil
}

// UnlockByPayment opens the reward directly, bypassing the invite count. Used
// by the payment-completed handler; the unlock must be committed before any
// confirmation message is attempted.
func (c *Counter) UnlockByPayment(ctx context.Context, tenantID uint, externalID int64) (models.RewardState, error) {
	st, err := c.rewards.RewardState(ctx, tenantID, externalID)
	if err != nil {
		return models.RewardState{}, fmt.Errorf("unlock load failed for user %d: %w", externalID, err)
	}

	st.RewardStatus = models.RewardOpen
	st.UnlockMethod = models.UnlockPayment

	if err := c.rewards.PersistRewardState(ctx, tenantID, externalID, st); err != nil {
		return models.RewardState{}, fmt.Errorf("unlock persist failed for user %d: %w", externalID, err)
	}
	return st, nil
}
