package journal

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"journal/api/internal/store"
)

const reviewerSampleLimit = 1000

// Stat keys produced when the precomputed index is unavailable.
const (
	StatAccepted       = "accepted"
	StatInReview       = "in_review"
	StatReviewers      = "reviewers"
	StatWeeklyComments = "weekly_comments"
)

// FetchStats reads the precomputed stats index. If that read fails the figures
// are computed from the base tables instead and no error is reported.
func (c *Client) FetchStats(ctx context.Context) ([]store.StatIndex, error) {
	stats, err := selectInto[[]store.StatIndex](ctx, c.db, store.From(store.TableStatsIndexes).Select("key", "value"))
	if err == nil {
		return stats, nil
	}
	c.log.Warn("stats index unavailable, computing fallback", zap.Error(err))
	c.metrics.RecordFallback(store.TableStatsIndexes)
	return c.buildStatsFallback(ctx), nil
}

// buildStatsFallback runs four independent reads. A failing read counts as 0.
func (c *Client) buildStatsFallback(ctx context.Context) []store.StatIndex {
	weekAgo := c.timestamp().AddDate(0, 0, -7)

	var accepted, inReview, weeklyComments, reviewers int
	var g errgroup.Group
	g.Go(func() error {
		accepted = c.countOrZero(ctx, store.From(store.TableSubmissions).Select("id").Eq("status", string(store.StatusAccepted)).Head())
		return nil
	})
	g.Go(func() error {
		inReview = c.countOrZero(ctx, store.From(store.TableSubmissions).Select("id").Eq("status", string(store.StatusInReview)).Head())
		return nil
	})
	g.Go(func() error {
		weeklyComments = c.countOrZero(ctx, store.From(store.TableComments).Select("id").Gte("created_at", weekAgo).Head())
		return nil
	})
	g.Go(func() error {
		rows, err := selectInto[[]struct {
			ReviewerID *string `json:"reviewer_id"`
		}](ctx, c.db, store.From(store.TableReviewOpinions).Select("reviewer_id").NotNull("reviewer_id").Limit(reviewerSampleLimit))
		if err != nil {
			c.log.Debug("reviewer sample failed", zap.Error(err))
			return nil
		}
		distinct := map[string]struct{}{}
		for _, row := range rows {
			if row.ReviewerID != nil && *row.ReviewerID != "" {
				distinct[*row.ReviewerID] = struct{}{}
			}
		}
		reviewers = len(distinct)
		return nil
	})
	_ = g.Wait()

	return []store.StatIndex{
		statValue(StatAccepted, accepted),
		statValue(StatInReview, inReview),
		statValue(StatReviewers, reviewers),
		statValue(StatWeeklyComments, weeklyComments),
	}
}

func (c *Client) countOrZero(ctx context.Context, q *store.Query) int {
	res, err := c.db.Select(ctx, q)
	if err != nil {
		c.log.Debug("stats count failed", zap.String("relation", q.Table()), zap.Error(err))
		return 0
	}
	return res.CountOrZero()
}

func statValue(key string, n int) store.StatIndex {
	return store.StatIndex{Key: key, Value: json.RawMessage(strconv.Itoa(n))}
}
