package slotexpiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal/api/internal/journal"
	"journal/api/internal/store"
)

type fakeSlots struct {
	overdue  []store.ReviewSlot
	listErr  error
	failures map[string]error
	asked    time.Time
	expired  []string
}

func (f *fakeSlots) ListOverdueClaimedSlots(_ context.Context, now time.Time) ([]store.ReviewSlot, error) {
	f.asked = now
	return f.overdue, f.listErr
}

func (f *fakeSlots) MarkReviewSlotExpired(_ context.Context, id string) error {
	if err := f.failures[id]; err != nil {
		return err
	}
	f.expired = append(f.expired, id)
	return nil
}

var now = time.Date(2026, 2, 9, 10, 30, 0, 0, time.UTC)

func TestRunExpiresOverdueSlots(t *testing.T) {
	slots := &fakeSlots{
		overdue: []store.ReviewSlot{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		failures: map[string]error{
			"b": journal.ErrSlotUnavailable,
			"c": errors.New("permission denied"),
		},
	}
	r := New(slots, func() time.Time { return now }, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, now, slots.asked)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []string{"a"}, report.Expired)
	assert.Equal(t, []string{"b"}, report.Skipped)
	assert.Equal(t, []string{"c"}, report.Failed)
}

func TestRunWithNothingOverdue(t *testing.T) {
	report, err := New(&fakeSlots{}, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
	assert.Empty(t, report.Expired)
}

func TestRunListFailure(t *testing.T) {
	_, err := New(&fakeSlots{listErr: errors.New("down")}, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list overdue slots")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slots := &fakeSlots{overdue: []store.ReviewSlot{{ID: "a"}}}

	_, err := New(slots, nil, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, slots.expired)
}
