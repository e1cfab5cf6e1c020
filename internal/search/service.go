package search

import (
	"context"

	"go.uber.org/zap"

	"journal/api/internal/metrics"
	"journal/api/internal/store"
)

// Fallback is the row-store search used when no engine is available.
type Fallback interface {
	SearchSubmissions(ctx context.Context, text string, limit int) ([]store.SubmissionListItem, error)
}

// Service tries the engine first and falls back to the row store.
type Service struct {
	engine   Engine
	fallback Fallback
	metrics  metrics.Recorder
	log      *zap.Logger
}

// NewService creates a search service. engine may be nil when Meilisearch is
// not configured.
func NewService(engine Engine, fallback Fallback, m metrics.Recorder, log *zap.Logger) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{engine: engine, fallback: fallback, metrics: m, log: log}
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.engineReady() {
		results, total, err := s.engine.Search(q)
		if err == nil {
			s.metrics.RecordSearch(EngineMeili)
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineMeili}
		}
		s.log.Warn("search engine failed, using row store", zap.Error(err))
	}

	s.metrics.RecordSearch(EngineFallback)
	items, err := s.fallback.SearchSubmissions(ctx, q.Text, q.Limit)
	if err != nil {
		s.log.Error("row store search failed", zap.String("query", q.Text), zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text, Engine: EngineFallback}
	}
	results := make([]Result, 0, len(items))
	for _, item := range items {
		if q.Status != "" && item.Status != q.Status {
			continue
		}
		updated := item.UpdatedAt
		results = append(results, Result{
			ID:        item.ID,
			Title:     item.Title,
			Status:    item.Status,
			UpdatedAt: &updated,
			Author:    item.Author,
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text, Engine: EngineFallback}
}

// IndexSubmission pushes one submission to the engine without waiting.
func (s *Service) IndexSubmission(rec SubmissionRecord) {
	if !s.engineReady() {
		return
	}
	go func() {
		if err := s.engine.IndexSubmissions([]SubmissionRecord{rec}); err != nil {
			s.log.Warn("index submission", zap.String("submission_id", rec.ID), zap.Error(err))
		}
	}()
}

func (s *Service) DeleteSubmission(id string) {
	if !s.engineReady() {
		return
	}
	go func() {
		if err := s.engine.DeleteSubmission(id); err != nil {
			s.log.Warn("delete submission from index", zap.String("submission_id", id), zap.Error(err))
		}
	}()
}

// ReindexAll pushes every record to the engine synchronously.
func (s *Service) ReindexAll(records []SubmissionRecord) error {
	if !s.engineReady() || len(records) == 0 {
		return nil
	}
	return s.engine.IndexSubmissions(records)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
