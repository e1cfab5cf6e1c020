package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal/api/internal/store"
)

func TestClaimReviewSlotWritesDueDate(t *testing.T) {
	rec := &recordingMetrics{}
	db := &fakeBackend{}

	require.NoError(t, newTestClient(db, WithMetrics(rec)).ClaimReviewSlot(context.Background(), "slot-1", "r1"))
	m := db.mutations[0]
	assert.Equal(t, "id=eq.slot-1", m.Filters())
	values := m.Values(0)
	assert.JSONEq(t, `"claimed"`, string(values["status"]))
	assert.JSONEq(t, `"r1"`, string(values["reviewer_id"]))
	assert.JSONEq(t, `"2026-02-09T10:30:00Z"`, string(values["claimed_at"]))
	assert.JSONEq(t, `"2026-02-23T10:30:00Z"`, string(values["due_at"]))
	assert.Equal(t, []string{"claimed"}, rec.transitions)
}

func TestClaimReviewSlotRequiresReviewer(t *testing.T) {
	db := &fakeBackend{}
	err := newTestClient(db).ClaimReviewSlot(context.Background(), "slot-1", "")
	var qe *store.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, store.CodeInvalidParameter, qe.Code)
	assert.Empty(t, db.mutations)
}

func TestClaimReviewSlotPrecondition(t *testing.T) {
	t.Run("first claim wins", func(t *testing.T) {
		affected := int64(1)
		db := &fakeBackend{mutateFn: func(context.Context, *store.Mutation) (int64, error) {
			n := affected
			affected = 0
			return n, nil
		}}
		c := newTestClient(db, WithSlotPrecondition(true))

		require.NoError(t, c.ClaimReviewSlot(context.Background(), "slot-1", "r1"))
		err := c.ClaimReviewSlot(context.Background(), "slot-1", "r2")
		assert.ErrorIs(t, err, ErrSlotUnavailable)
		assert.Equal(t, "id=eq.slot-1&status=eq.open", db.mutations[1].Filters())
	})

	t.Run("without precondition a re-claim overwrites", func(t *testing.T) {
		db := &fakeBackend{mutateFn: func(context.Context, *store.Mutation) (int64, error) { return 0, nil }}
		assert.NoError(t, newTestClient(db).ClaimReviewSlot(context.Background(), "slot-1", "r2"))
		assert.Equal(t, "id=eq.slot-1", db.mutations[0].Filters())
	})
}

func TestExplicitSlotTransitions(t *testing.T) {
	rec := &recordingMetrics{}
	db := &fakeBackend{}
	c := newTestClient(db, WithMetrics(rec), WithSlotPrecondition(true))

	require.NoError(t, c.MarkReviewSlotExpired(context.Background(), "slot-1"))
	require.NoError(t, c.CompleteReviewSlot(context.Background(), "slot-2"))

	assert.JSONEq(t, `{"status":"expired"}`, mustJSON(t, db.mutations[0].Values(0)))
	assert.Equal(t, "id=eq.slot-1&status=eq.claimed", db.mutations[0].Filters())
	assert.JSONEq(t, `{"status":"completed"}`, mustJSON(t, db.mutations[1].Values(0)))
	assert.Equal(t, []string{"expired", "completed"}, rec.transitions)
}

func TestSlotTransitionErrorIsQueryError(t *testing.T) {
	db := &fakeBackend{mutateFn: func(context.Context, *store.Mutation) (int64, error) { return 0, errors.New("boom") }}
	err := newTestClient(db).MarkReviewSlotExpired(context.Background(), "slot-1")
	var qe *store.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "boom", qe.Message)
}

func TestListOverdueClaimedSlots(t *testing.T) {
	db := &fakeBackend{selectFn: func(_ context.Context, q *store.Query) (store.Result, error) {
		assert.Equal(t, "review_slots?select=id,submission_id,reviewer_id,status,claimed_at,due_at&status=eq.claimed&due_at=lt.2026-02-09 10:30:00 +0000 UTC&order=due_at.asc", q.String())
		return store.RowsResult([]map[string]any{{"id": "slot-1", "submission_id": "s1", "status": "claimed", "due_at": "2026-02-01T00:00:00Z"}}), nil
	}}

	slots, err := newTestClient(db).ListOverdueClaimedSlots(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "slot-1", slots[0].ID)
}
