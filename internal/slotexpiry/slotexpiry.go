// Package slotexpiry expires claimed review slots that are past due. It runs
// only when invoked; nothing expires slots in the background.
package slotexpiry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/journal"
	"journal/api/internal/store"
)

type Slots interface {
	ListOverdueClaimedSlots(ctx context.Context, now time.Time) ([]store.ReviewSlot, error)
	MarkReviewSlotExpired(ctx context.Context, slotID string) error
}

type Report struct {
	Checked int      `json:"checked"`
	Expired []string `json:"expired"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

type Runner struct {
	slots Slots
	now   func() time.Time
	log   *zap.Logger
}

func New(slots Slots, now func() time.Time, log *zap.Logger) *Runner {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{slots: slots, now: now, log: log}
}

// Run expires every overdue claimed slot once. Slots that changed state in
// the meantime are skipped; individual failures do not stop the run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{Expired: []string{}, Skipped: []string{}, Failed: []string{}}

	overdue, err := r.slots.ListOverdueClaimedSlots(ctx, r.now())
	if err != nil {
		return report, fmt.Errorf("list overdue slots: %w", err)
	}
	report.Checked = len(overdue)

	for _, slot := range overdue {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := r.slots.MarkReviewSlotExpired(ctx, slot.ID)
		switch {
		case err == nil:
			report.Expired = append(report.Expired, slot.ID)
		case errors.Is(err, journal.ErrSlotUnavailable):
			report.Skipped = append(report.Skipped, slot.ID)
		default:
			r.log.Warn("expire slot", zap.String("slot_id", slot.ID), zap.Error(err))
			report.Failed = append(report.Failed, slot.ID)
		}
	}

	r.log.Info("slot expiry finished",
		zap.Int("checked", report.Checked),
		zap.Int("expired", len(report.Expired)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}
