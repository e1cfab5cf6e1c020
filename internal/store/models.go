package store

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusInReview  SubmissionStatus = "in_review"
	StatusAccepted  SubmissionStatus = "accepted"
	StatusRejected  SubmissionStatus = "rejected"
)

// IsDecided reports whether an editor has closed the submission either way.
func (s SubmissionStatus) IsDecided() bool {
	return s == StatusAccepted || s == StatusRejected
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionMinor  Decision = "minor"
	DecisionMajor  Decision = "major"
	DecisionReject Decision = "reject"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionAccept, DecisionMinor, DecisionMajor, DecisionReject:
		return true
	default:
		return false
	}
}

type OpinionStatus string

const (
	OpinionOpen   OpinionStatus = "open"
	OpinionClosed OpinionStatus = "closed"
)

type ReplyRole string

const (
	ReplyRoleAuthor   ReplyRole = "author"
	ReplyRoleReviewer ReplyRole = "reviewer"
)

type SlotStatus string

const (
	SlotOpen      SlotStatus = "open"
	SlotClaimed   SlotStatus = "claimed"
	SlotExpired   SlotStatus = "expired"
	SlotCompleted SlotStatus = "completed"
)

// UserProfile is the display shape embedded into other rows.
type UserProfile struct {
	ID       string  `json:"id,omitempty"`
	Username *string `json:"username"`
}

// Profile is the users row backing a signed-in identity.
type Profile struct {
	ID         string  `json:"id"`
	Username   *string `json:"username"`
	Role       *string `json:"role"`
	CanSubmit  bool    `json:"can_submit"`
	CanReview  bool    `json:"can_review"`
	CanComment bool    `json:"can_comment"`
}

type SubmissionListItem struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	UpdatedAt time.Time        `json:"updated_at"`
	Status    SubmissionStatus `json:"status"`
	Author    *UserProfile     `json:"author"`
}

type SubmissionListItemWithMeta struct {
	SubmissionListItem
	CommentsCount int  `json:"comments_count"`
	ReviewsCount  int  `json:"reviews_count"`
	SlotsCount    *int `json:"slots_count,omitempty"`
}

type SubmissionDetail struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Abstract     *string          `json:"abstract"`
	ContentMD    *string          `json:"content_md"`
	CreatedAt    *time.Time       `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	AcceptedAt   *time.Time       `json:"accepted_at"`
	RejectedAt   *time.Time       `json:"rejected_at"`
	Status       SubmissionStatus `json:"status"`
	Decision     *Decision        `json:"decision"`
	AuthorID     *string          `json:"author_id"`
	AuthorEmail  *string          `json:"author_email,omitempty"`
	Author       *UserProfile     `json:"author"`
	Keywords     []string         `json:"keywords"`
	VersionMajor *int             `json:"version_major"`
	VersionMinor *int             `json:"version_minor"`
	VersionLabel *string          `json:"version_label"`
}

type SubmissionCreate struct {
	Title             string   `json:"title"`
	Abstract          string   `json:"abstract"`
	ContentMD         string   `json:"content_md"`
	AuthorID          string   `json:"author_id"`
	AuthorName        *string  `json:"author_name"`
	AuthorEmail       *string  `json:"author_email"`
	AuthorAffiliation *string  `json:"author_affiliation"`
	Keywords          []string `json:"keywords"`
}

type SubmissionContentUpdate struct {
	Title        string   `json:"title"`
	Abstract     string   `json:"abstract"`
	ContentMD    string   `json:"content_md"`
	Keywords     []string `json:"keywords"`
	VersionMajor int      `json:"version_major"`
	VersionMinor int      `json:"version_minor"`
	VersionLabel string   `json:"version_label"`
}

type CommentRecord struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	BodyMD    *string      `json:"body_md"`
	Author    *UserProfile `json:"author"`
}

type CommentCreate struct {
	SubmissionID string `json:"submission_id"`
	AuthorID     string `json:"author_id"`
	BodyMD       string `json:"body_md"`
}

type ReviewOpinionRecord struct {
	ID            string        `json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	BodyMD        *string       `json:"body_md"`
	ReviewerID    *string       `json:"reviewer_id"`
	Status        OpinionStatus `json:"status"`
	Decision      *Decision     `json:"decision"`
	AuthorReplyMD *string       `json:"author_reply_md"`
	Reviewer      *UserProfile  `json:"reviewer"`
}

type ReviewOpinionCreate struct {
	SubmissionID string   `json:"submission_id"`
	ReviewerID   string   `json:"reviewer_id"`
	BodyMD       string   `json:"body_md"`
	Decision     Decision `json:"decision"`
}

type ReviewOpinionReply struct {
	ID              string       `json:"id"`
	ReviewOpinionID string       `json:"review_opinion_id"`
	SubmissionID    string       `json:"submission_id"`
	AuthorID        *string      `json:"author_id"`
	Role            ReplyRole    `json:"role"`
	BodyMD          string       `json:"body_md"`
	CreatedAt       time.Time    `json:"created_at"`
	Author          *UserProfile `json:"author"`
}

type ReviewOpinionReplyCreate struct {
	SubmissionID    string    `json:"submission_id"`
	ReviewOpinionID string    `json:"review_opinion_id"`
	AuthorID        string    `json:"author_id"`
	Role            ReplyRole `json:"role"`
	BodyMD          string    `json:"body_md"`
}

type ReviewSlot struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submission_id"`
	ReviewerID   *string    `json:"reviewer_id"`
	Status       SlotStatus `json:"status"`
	ClaimedAt    *time.Time `json:"claimed_at"`
	DueAt        *time.Time `json:"due_at"`
}

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	BodyMD    *string   `json:"body_md"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AuthorID  *string   `json:"author_id"`
}

type StatIndex struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type UserSubmissionRow struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Status    SubmissionStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type UserReviewOpinionRow struct {
	ID           string        `json:"id"`
	SubmissionID string        `json:"submission_id"`
	Status       OpinionStatus `json:"status"`
	Decision     *Decision     `json:"decision"`
	CreatedAt    time.Time     `json:"created_at"`
}

// PermissionsUpdate carries an admin change to a users row. Nil fields are left untouched.
type PermissionsUpdate struct {
	ID         string  `json:"id"`
	Role       *string `json:"role,omitempty"`
	CanSubmit  *bool   `json:"can_submit,omitempty"`
	CanReview  *bool   `json:"can_review,omitempty"`
	CanComment *bool   `json:"can_comment,omitempty"`
}
