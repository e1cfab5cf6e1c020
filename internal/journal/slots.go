package journal

import (
	"context"
	"time"

	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

// ErrSlotUnavailable reports a conditional slot write that matched no row,
// i.e. another reviewer got there first or the slot moved on.
var ErrSlotUnavailable = &store.QueryError{Message: "review slot is no longer available"}

var slotColumns = []string{"id", "submission_id", "reviewer_id", "status", "claimed_at", "due_at"}

func (c *Client) FetchReviewSlots(ctx context.Context, submissionID string) ([]store.ReviewSlot, error) {
	return selectInto[[]store.ReviewSlot](ctx, c.db, store.From(store.TableReviewSlots).
		Select(slotColumns...).
		Eq("submission_id", submissionID).
		Order("created_at", true))
}

func (c *Client) FetchReviewSlot(ctx context.Context, slotID string) (*store.ReviewSlot, error) {
	return selectInto[*store.ReviewSlot](ctx, c.db, store.From(store.TableReviewSlots).
		Select(slotColumns...).
		Eq("id", slotID).
		MaybeSingle())
}

// ClaimReviewSlot assigns the slot to reviewerID with a due date 14 days out.
func (c *Client) ClaimReviewSlot(ctx context.Context, slotID, reviewerID string) error {
	claim, err := workflow.Claim(reviewerID, c.timestamp())
	if err != nil {
		return &store.QueryError{Message: err.Error(), Code: store.CodeInvalidParameter}
	}
	m := store.Update(store.TableReviewSlots, claim).Eq("id", slotID)
	return c.transitionSlot(ctx, m, store.SlotOpen, store.SlotClaimed)
}

func (c *Client) MarkReviewSlotExpired(ctx context.Context, slotID string) error {
	m := store.Update(store.TableReviewSlots, workflow.Expire()).Eq("id", slotID)
	return c.transitionSlot(ctx, m, store.SlotClaimed, store.SlotExpired)
}

func (c *Client) CompleteReviewSlot(ctx context.Context, slotID string) error {
	m := store.Update(store.TableReviewSlots, workflow.Complete()).Eq("id", slotID)
	return c.transitionSlot(ctx, m, store.SlotClaimed, store.SlotCompleted)
}

func (c *Client) transitionSlot(ctx context.Context, m *store.Mutation, from, to store.SlotStatus) error {
	if c.slotPrecondition {
		m = m.Eq("status", string(from))
	}
	n, err := c.mutate(ctx, m)
	if err != nil {
		return err
	}
	if c.slotPrecondition && n == 0 {
		return ErrSlotUnavailable
	}
	c.metrics.RecordSlotTransition(string(to))
	return nil
}

// ListOverdueClaimedSlots returns claimed slots whose due date has passed.
func (c *Client) ListOverdueClaimedSlots(ctx context.Context, now time.Time) ([]store.ReviewSlot, error) {
	return selectInto[[]store.ReviewSlot](ctx, c.db, store.From(store.TableReviewSlots).
		Select(slotColumns...).
		Eq("status", string(store.SlotClaimed)).
		Lt("due_at", now.UTC()).
		Order("due_at", true))
}
