package workflow

import (
	"errors"
	"time"

	"journal/api/internal/store"
)

// ReviewPeriodDays is how long a reviewer has after claiming a slot.
const ReviewPeriodDays = 14

var ErrReviewerRequired = errors.New("reviewer id is required")

type SlotClaim struct {
	ReviewerID string           `json:"reviewer_id"`
	Status     store.SlotStatus `json:"status"`
	ClaimedAt  time.Time        `json:"claimed_at"`
	DueAt      time.Time        `json:"due_at"`
}

// Claim builds the claim write. Claiming an already claimed slot is not
// rejected here; the newer claim overwrites.
func Claim(reviewerID string, now time.Time) (SlotClaim, error) {
	if reviewerID == "" {
		return SlotClaim{}, ErrReviewerRequired
	}
	now = now.UTC()
	return SlotClaim{
		ReviewerID: reviewerID,
		Status:     store.SlotClaimed,
		ClaimedAt:  now,
		DueAt:      now.AddDate(0, 0, ReviewPeriodDays),
	}, nil
}

type SlotTransition struct {
	Status store.SlotStatus `json:"status"`
}

func Expire() SlotTransition   { return SlotTransition{Status: store.SlotExpired} }
func Complete() SlotTransition { return SlotTransition{Status: store.SlotCompleted} }

var slotGraph = map[store.SlotStatus][]store.SlotStatus{
	store.SlotOpen:    {store.SlotClaimed},
	store.SlotClaimed: {store.SlotClaimed, store.SlotExpired, store.SlotCompleted},
}

// CanTransition reports whether the lifecycle allows from -> to. Expired and
// completed are terminal and nothing returns to open.
func CanTransition(from, to store.SlotStatus) bool {
	for _, next := range slotGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOverdue reports whether a claimed slot is past its due date.
func IsOverdue(slot store.ReviewSlot, now time.Time) bool {
	return slot.Status == store.SlotClaimed && slot.DueAt != nil && slot.DueAt.Before(now)
}
