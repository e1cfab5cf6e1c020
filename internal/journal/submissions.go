package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

const DefaultRecentActivities = 6

var (
	listColumns   = []string{"id", "title", "updated_at", "status"}
	detailColumns = []string{
		"id", "title", "abstract", "content_md", "created_at", "updated_at", "accepted_at", "rejected_at",
		"status", "decision", "author_id", "keywords", "version_major", "version_minor", "version_label",
	}
)

type listItemRow struct {
	store.SubmissionListItem
	Author json.RawMessage `json:"author"`
}

func normalizeList(rows []listItemRow) []store.SubmissionListItem {
	out := make([]store.SubmissionListItem, 0, len(rows))
	for _, row := range rows {
		item := row.SubmissionListItem
		item.Author = NormalizeOne[store.UserProfile](row.Author)
		out = append(out, item)
	}
	return out
}

// fetchList reads submissions with the author embedded, retrying without the
// join when the embedded relation is not readable.
func (c *Client) fetchList(ctx context.Context, build func(q *store.Query) *store.Query) ([]store.SubmissionListItem, error) {
	return fallback(c, ctx, store.TableSubmissions,
		func(ctx context.Context) ([]store.SubmissionListItem, error) {
			q := build(store.From(store.TableSubmissions).Select(listColumns...).Embed("author", store.TableUsers, "author_id", "username"))
			rows, err := selectInto[[]listItemRow](ctx, c.db, q)
			if err != nil {
				return nil, err
			}
			return normalizeList(rows), nil
		},
		func(ctx context.Context) ([]store.SubmissionListItem, error) {
			rows, err := selectInto[[]listItemRow](ctx, c.db, build(store.From(store.TableSubmissions).Select(listColumns...)))
			if err != nil {
				return nil, err
			}
			return normalizeList(rows), nil
		},
	)
}

func (c *Client) FetchSubmissionsByStatus(ctx context.Context, status store.SubmissionStatus) ([]store.SubmissionListItem, error) {
	return c.fetchList(ctx, func(q *store.Query) *store.Query {
		return q.Eq("status", string(status)).Order("updated_at", false)
	})
}

func (c *Client) FetchRecentActivities(ctx context.Context, limit int) ([]store.SubmissionListItem, error) {
	if limit <= 0 {
		limit = DefaultRecentActivities
	}
	return c.fetchList(ctx, func(q *store.Query) *store.Query {
		return q.In("status", string(store.StatusAccepted), string(store.StatusInReview)).
			Order("updated_at", false).
			Limit(limit)
	})
}

// SearchSubmissions matches titles case-insensitively. It backs search when
// the full-text engine is not available.
func (c *Client) SearchSubmissions(ctx context.Context, text string, limit int) ([]store.SubmissionListItem, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(text) + "%"
	return c.fetchList(ctx, func(q *store.Query) *store.Query {
		return q.ILike("title", pattern).Order("updated_at", false).Limit(limit)
	})
}

// FetchSubmissionListWithMeta decorates a status list with comment, review and,
// for in_review lists, slot counts. A failing count read contributes zeros.
func (c *Client) FetchSubmissionListWithMeta(ctx context.Context, status store.SubmissionStatus) ([]store.SubmissionListItemWithMeta, error) {
	list, err := c.FetchSubmissionsByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return []store.SubmissionListItemWithMeta{}, nil
	}

	ids := make([]string, 0, len(list))
	for _, item := range list {
		ids = append(ids, item.ID)
	}
	withSlots := status == store.StatusInReview

	var comments, reviews, slots map[string]int
	var g errgroup.Group
	g.Go(func() error {
		comments = c.countRefs(ctx, store.TableComments, ids)
		return nil
	})
	g.Go(func() error {
		reviews = c.countRefs(ctx, store.TableReviewOpinions, ids)
		return nil
	})
	if withSlots {
		g.Go(func() error {
			slots = c.countRefs(ctx, store.TableReviewSlots, ids)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]store.SubmissionListItemWithMeta, 0, len(list))
	for _, item := range list {
		meta := store.SubmissionListItemWithMeta{
			SubmissionListItem: item,
			CommentsCount:      comments[item.ID],
			ReviewsCount:       reviews[item.ID],
		}
		if withSlots {
			n := slots[item.ID]
			meta.SlotsCount = &n
		}
		out = append(out, meta)
	}
	return out, nil
}

func (c *Client) countRefs(ctx context.Context, table string, ids []string) map[string]int {
	rows, err := selectInto[[]SubmissionRef](ctx, c.db, store.From(table).Select("submission_id").In("submission_id", ids...))
	if err != nil {
		c.log.Debug("count query failed", zap.String("relation", table), zap.Error(err))
		return map[string]int{}
	}
	return CountBySubmission(rows)
}

type detailRow struct {
	store.SubmissionDetail
	Author json.RawMessage `json:"author"`
}

// FetchSubmissionDetail returns nil without error when no row matches.
func (c *Client) FetchSubmissionDetail(ctx context.Context, id string) (*store.SubmissionDetail, error) {
	read := func(ctx context.Context, q *store.Query) (*store.SubmissionDetail, error) {
		row, err := selectInto[*detailRow](ctx, c.db, q.Eq("id", id).MaybeSingle())
		if err != nil || row == nil {
			return nil, err
		}
		detail := row.SubmissionDetail
		detail.Author = NormalizeOne[store.UserProfile](row.Author)
		if detail.Keywords == nil {
			detail.Keywords = []string{}
		}
		return &detail, nil
	}
	return fallback(c, ctx, store.TableSubmissions,
		func(ctx context.Context) (*store.SubmissionDetail, error) {
			cols := append(append([]string(nil), detailColumns...), "author_email")
			return read(ctx, store.From(store.TableSubmissions).Select(cols...).Embed("author", store.TableUsers, "author_id", "username"))
		},
		func(ctx context.Context) (*store.SubmissionDetail, error) {
			return read(ctx, store.From(store.TableSubmissions).Select(detailColumns...))
		},
	)
}

type submissionInsert struct {
	ID string `json:"id"`
	store.SubmissionCreate
	Status       store.SubmissionStatus `json:"status"`
	VersionMajor int                    `json:"version_major"`
	VersionMinor int                    `json:"version_minor"`
	VersionLabel string                 `json:"version_label"`
}

// CreateSubmission inserts a new submission in review at version 1.0 and
// returns its id.
func (c *Client) CreateSubmission(ctx context.Context, payload store.SubmissionCreate) (string, error) {
	if payload.Keywords == nil {
		payload.Keywords = []string{}
	}
	v := workflow.InitialVersion(c.timestamp())
	row := submissionInsert{
		ID:               uuid.NewString(),
		SubmissionCreate: payload,
		Status:           store.StatusInReview,
		VersionMajor:     v.Major,
		VersionMinor:     v.Minor,
		VersionLabel:     v.Label,
	}
	if _, err := c.mutate(ctx, store.Insert(store.TableSubmissions, row)); err != nil {
		return "", err
	}
	return row.ID, nil
}

type contentUpdate struct {
	store.SubmissionContentUpdate
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) UpdateSubmissionContent(ctx context.Context, id string, payload store.SubmissionContentUpdate) error {
	if payload.Keywords == nil {
		payload.Keywords = []string{}
	}
	_, err := c.mutate(ctx, store.Update(store.TableSubmissions, contentUpdate{
		SubmissionContentUpdate: payload,
		UpdatedAt:               c.timestamp(),
	}).Eq("id", id))
	return err
}

func (c *Client) UpdateSubmissionDecision(ctx context.Context, id string, m workflow.DecisionMutation) error {
	if _, err := c.mutate(ctx, store.Update(store.TableSubmissions, m).Eq("id", id)); err != nil {
		return err
	}
	c.metrics.RecordDecision(string(m.Status))
	return nil
}

func (c *Client) FetchUserSubmissions(ctx context.Context, authorID string) ([]store.UserSubmissionRow, error) {
	return selectInto[[]store.UserSubmissionRow](ctx, c.db, store.From(store.TableSubmissions).
		Select("id", "title", "status", "updated_at").
		Eq("author_id", authorID).
		Order("updated_at", false))
}

func (c *Client) FetchUserSubmissionsPage(ctx context.Context, authorID string, p PageParams) (Page[store.UserSubmissionRow], error) {
	col, err := p.orderColumn("updated_at", "status", "title")
	if err != nil {
		return Page[store.UserSubmissionRow]{}, err
	}
	q := store.From(store.TableSubmissions).
		Select("id", "title", "status", "updated_at").
		Eq("author_id", authorID).
		Order(col, p.Ascending)
	return selectPage[store.UserSubmissionRow](ctx, c.db, q, p)
}
