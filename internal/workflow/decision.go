package workflow

import (
	"errors"
	"fmt"
	"time"

	"journal/api/internal/store"
)

var ErrInvalidStatus = errors.New("invalid decision status")

// DecisionMutation is the row change written when an editor records a decision.
// Nil timestamps are written as null.
type DecisionMutation struct {
	Status     store.SubmissionStatus `json:"status"`
	Decision   *store.Decision        `json:"decision"`
	UpdatedAt  time.Time              `json:"updated_at"`
	AcceptedAt *time.Time             `json:"accepted_at"`
	RejectedAt *time.Time             `json:"rejected_at"`
}

func ApplyDecision(status store.SubmissionStatus, decision *store.Decision, now time.Time) (DecisionMutation, error) {
	if decision != nil && !decision.Valid() {
		return DecisionMutation{}, fmt.Errorf("%w: decision %q", ErrInvalidStatus, *decision)
	}
	now = now.UTC()
	m := DecisionMutation{Status: status, Decision: decision, UpdatedAt: now}
	switch status {
	case store.StatusAccepted:
		m.AcceptedAt = &now
	case store.StatusRejected:
		m.RejectedAt = &now
	case store.StatusInReview:
	default:
		return DecisionMutation{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return m, nil
}
