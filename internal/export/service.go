package export

import (
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"journal/api/internal/markdown"
	"journal/api/internal/store"
)

// Source is the read side of the journal the export needs.
type Source interface {
	FetchSubmissionDetail(ctx context.Context, id string) (*store.SubmissionDetail, error)
	FetchReviewOpinions(ctx context.Context, submissionID string) ([]store.ReviewOpinionRecord, error)
}

type Service struct {
	source  Source
	printer Printer
	objects ObjectStore
	log     *zap.Logger
}

// NewService creates an export service. objects may be nil.
func NewService(source Source, printer Printer, objects ObjectStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{source: source, printer: printer, objects: objects, log: log}
}

// RenderHTML builds the printable page of a submission.
func (s *Service) RenderHTML(ctx context.Context, req Request) (string, *store.SubmissionDetail, error) {
	detail, err := s.source.FetchSubmissionDetail(ctx, req.SubmissionID)
	if err != nil {
		return "", nil, fmt.Errorf("get submission: %w", err)
	}
	if detail == nil {
		return "", nil, ErrSubmissionNotFound
	}

	data := TemplateData{
		Title:       detail.Title,
		Status:      detail.Status,
		Keywords:    detail.Keywords,
		UpdatedAt:   detail.UpdatedAt,
		ContentHTML: template.HTML(markdown.Render(deref(detail.ContentMD))),
	}
	data.Abstract = deref(detail.Abstract)
	data.VersionLabel = deref(detail.VersionLabel)
	if detail.Author != nil {
		data.Author = deref(detail.Author.Username)
	}

	if req.IncludeReviews {
		opinions, err := s.source.FetchReviewOpinions(ctx, req.SubmissionID)
		if err != nil {
			return "", nil, fmt.Errorf("list review opinions: %w", err)
		}
		for _, o := range opinions {
			item := TemplateOpinion{
				Status:    string(o.Status),
				BodyHTML:  template.HTML(markdown.Render(deref(o.BodyMD))),
				ReplyHTML: template.HTML(markdown.Render(deref(o.AuthorReplyMD))),
			}
			if o.Reviewer != nil {
				item.Reviewer = deref(o.Reviewer.Username)
			}
			if o.Decision != nil {
				item.Decision = string(*o.Decision)
			}
			data.Opinions = append(data.Opinions, item)
		}
	}

	html, err := RenderSubmissionHTML(data)
	if err != nil {
		return "", nil, fmt.Errorf("render template: %w", err)
	}
	return html, detail, nil
}

// Export prints the submission and, when requested and configured, stores
// the PDF under its version label. A failed upload does not fail the export.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	html, detail, err := s.RenderHTML(ctx, req)
	if err != nil {
		return nil, err
	}
	pdf, err := s.printer.PrintPDF(ctx, html)
	if err != nil {
		return nil, err
	}

	label := deref(detail.VersionLabel)
	filename := sanitizeFilename(detail.Title)
	if label != "" {
		filename += "_" + label
	}
	result := &Result{
		Data:     pdf,
		Filename: filename + ".pdf",
		MimeType: "application/pdf",
	}

	if req.Upload && s.objects != nil {
		key := ObjectKey(detail.ID, label)
		if err := s.objects.Put(ctx, key, pdf, result.MimeType); err != nil {
			s.log.Warn("store export", zap.String("key", key), zap.Error(err))
		} else {
			result.ObjectKey = key
		}
	}
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
