package journal

import (
	"context"
	"encoding/json"
	"time"

	"journal/api/internal/store"
)

type commentRow struct {
	store.CommentRecord
	Author json.RawMessage `json:"author"`
}

func (c *Client) FetchComments(ctx context.Context, submissionID string) ([]store.CommentRecord, error) {
	read := func(ctx context.Context, q *store.Query) ([]store.CommentRecord, error) {
		rows, err := selectInto[[]commentRow](ctx, c.db, q.Eq("submission_id", submissionID).Order("created_at", false))
		if err != nil {
			return nil, err
		}
		out := make([]store.CommentRecord, 0, len(rows))
		for _, row := range rows {
			rec := row.CommentRecord
			rec.Author = NormalizeOne[store.UserProfile](row.Author)
			out = append(out, rec)
		}
		return out, nil
	}
	return fallback(c, ctx, store.TableComments,
		func(ctx context.Context) ([]store.CommentRecord, error) {
			return read(ctx, store.From(store.TableComments).Select("id", "created_at", "body_md").Embed("author", store.TableUsers, "author_id", "username"))
		},
		func(ctx context.Context) ([]store.CommentRecord, error) {
			return read(ctx, store.From(store.TableComments).Select("id", "created_at", "body_md"))
		},
	)
}

func (c *Client) CreateComment(ctx context.Context, payload store.CommentCreate) error {
	_, err := c.mutate(ctx, store.Insert(store.TableComments, payload))
	return err
}

var opinionColumns = []string{"id", "created_at", "body_md", "reviewer_id", "status", "decision", "author_reply_md"}

type opinionRow struct {
	store.ReviewOpinionRecord
	Reviewer json.RawMessage `json:"reviewer"`
}

func (c *Client) readOpinions(ctx context.Context, build func(*store.Query) *store.Query) ([]store.ReviewOpinionRecord, error) {
	read := func(ctx context.Context, q *store.Query) ([]store.ReviewOpinionRecord, error) {
		rows, err := selectInto[[]opinionRow](ctx, c.db, build(q))
		if err != nil {
			return nil, err
		}
		out := make([]store.ReviewOpinionRecord, 0, len(rows))
		for _, row := range rows {
			rec := row.ReviewOpinionRecord
			rec.Reviewer = NormalizeOne[store.UserProfile](row.Reviewer)
			out = append(out, rec)
		}
		return out, nil
	}
	return fallback(c, ctx, store.TableReviewOpinions,
		func(ctx context.Context) ([]store.ReviewOpinionRecord, error) {
			return read(ctx, store.From(store.TableReviewOpinions).Select(opinionColumns...).Embed("reviewer", store.TableUsers, "reviewer_id", "username"))
		},
		func(ctx context.Context) ([]store.ReviewOpinionRecord, error) {
			return read(ctx, store.From(store.TableReviewOpinions).Select(opinionColumns...))
		},
	)
}

func (c *Client) FetchReviewOpinions(ctx context.Context, submissionID string) ([]store.ReviewOpinionRecord, error) {
	return c.readOpinions(ctx, func(q *store.Query) *store.Query {
		return q.Eq("submission_id", submissionID).Order("created_at", false)
	})
}

// FetchReviewOpinion reads one opinion of a submission, or nil.
func (c *Client) FetchReviewOpinion(ctx context.Context, submissionID, opinionID string) (*store.ReviewOpinionRecord, error) {
	rows, err := c.readOpinions(ctx, func(q *store.Query) *store.Query {
		return q.Eq("submission_id", submissionID).Eq("id", opinionID).Limit(1)
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

type opinionInsert struct {
	store.ReviewOpinionCreate
	Status store.OpinionStatus `json:"status"`
}

func (c *Client) CreateReviewOpinion(ctx context.Context, payload store.ReviewOpinionCreate) error {
	_, err := c.mutate(ctx, store.Insert(store.TableReviewOpinions, opinionInsert{
		ReviewOpinionCreate: payload,
		Status:              store.OpinionOpen,
	}))
	return err
}

func (c *Client) UpdateReviewOpinionAuthorReply(ctx context.Context, id, body string) error {
	_, err := c.mutate(ctx, store.Update(store.TableReviewOpinions, struct {
		AuthorReplyMD string    `json:"author_reply_md"`
		UpdatedAt     time.Time `json:"updated_at"`
	}{body, c.timestamp()}).Eq("id", id))
	return err
}

// CloseReviewOpinion is terminal; nothing reopens an opinion.
func (c *Client) CloseReviewOpinion(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, store.Update(store.TableReviewOpinions, struct {
		Status   store.OpinionStatus `json:"status"`
		ClosedAt time.Time           `json:"closed_at"`
	}{store.OpinionClosed, c.timestamp()}).Eq("id", id))
	return err
}

type replyRow struct {
	store.ReviewOpinionReply
	Author json.RawMessage `json:"author"`
}

var replyColumns = []string{"id", "review_opinion_id", "submission_id", "author_id", "role", "body_md", "created_at"}

func (c *Client) FetchReviewOpinionReplies(ctx context.Context, submissionID string) ([]store.ReviewOpinionReply, error) {
	read := func(ctx context.Context, q *store.Query) ([]store.ReviewOpinionReply, error) {
		rows, err := selectInto[[]replyRow](ctx, c.db, q.Eq("submission_id", submissionID).Order("created_at", true))
		if err != nil {
			return nil, err
		}
		out := make([]store.ReviewOpinionReply, 0, len(rows))
		for _, row := range rows {
			rec := row.ReviewOpinionReply
			rec.Author = NormalizeOne[store.UserProfile](row.Author)
			out = append(out, rec)
		}
		return out, nil
	}
	return fallback(c, ctx, store.TableReviewOpinionReplies,
		func(ctx context.Context) ([]store.ReviewOpinionReply, error) {
			return read(ctx, store.From(store.TableReviewOpinionReplies).Select(replyColumns...).Embed("author", store.TableUsers, "author_id", "username"))
		},
		func(ctx context.Context) ([]store.ReviewOpinionReply, error) {
			return read(ctx, store.From(store.TableReviewOpinionReplies).Select(replyColumns...))
		},
	)
}

func (c *Client) CreateReviewOpinionReply(ctx context.Context, payload store.ReviewOpinionReplyCreate) error {
	_, err := c.mutate(ctx, store.Insert(store.TableReviewOpinionReplies, payload))
	return err
}

func (c *Client) FetchUserReviewOpinions(ctx context.Context, reviewerID string) ([]store.UserReviewOpinionRow, error) {
	return selectInto[[]store.UserReviewOpinionRow](ctx, c.db, store.From(store.TableReviewOpinions).
		Select("id", "submission_id", "status", "decision", "created_at").
		Eq("reviewer_id", reviewerID).
		Order("created_at", false))
}

func (c *Client) FetchUserReviewOpinionsPage(ctx context.Context, reviewerID string, p PageParams) (Page[store.UserReviewOpinionRow], error) {
	col, err := p.orderColumn("created_at", "status")
	if err != nil {
		return Page[store.UserReviewOpinionRow]{}, err
	}
	q := store.From(store.TableReviewOpinions).
		Select("id", "submission_id", "status", "decision", "created_at").
		Eq("reviewer_id", reviewerID).
		Order(col, p.Ascending)
	return selectPage[store.UserReviewOpinionRow](ctx, c.db, q, p)
}
