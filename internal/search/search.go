// Package search finds submissions by text, through Meilisearch when it is
// reachable and through the row store otherwise.
package search

import (
	"time"

	"journal/api/internal/store"
)

const (
	EngineMeili    = "meilisearch"
	EngineFallback = "row_store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Snippet   string                 `json:"snippet,omitempty"`
	Status    store.SubmissionStatus `json:"status"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
	Author    *store.UserProfile     `json:"author,omitempty"`
}

type Query struct {
	Text   string
	Status store.SubmissionStatus
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// SubmissionRecord is what gets indexed for a submission.
type SubmissionRecord struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Abstract     string   `json:"abstract"`
	Keywords     []string `json:"keywords"`
	Status       string   `json:"status"`
	VersionLabel string   `json:"version_label"`
	UpdatedAt    int64    `json:"updated_at"`
}

func RecordFromDetail(d store.SubmissionDetail) SubmissionRecord {
	rec := SubmissionRecord{
		ID:        d.ID,
		Title:     d.Title,
		Keywords:  d.Keywords,
		Status:    string(d.Status),
		UpdatedAt: d.UpdatedAt.Unix(),
	}
	if d.Abstract != nil {
		rec.Abstract = *d.Abstract
	}
	if d.VersionLabel != nil {
		rec.VersionLabel = *d.VersionLabel
	}
	if rec.Keywords == nil {
		rec.Keywords = []string{}
	}
	return rec
}

// Engine is a full-text index over submissions.
type Engine interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexSubmissions(records []SubmissionRecord) error
	DeleteSubmission(id string) error
}
