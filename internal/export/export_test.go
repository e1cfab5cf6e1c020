package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal/api/internal/store"
)

type fakeSource struct {
	detail   *store.SubmissionDetail
	opinions []store.ReviewOpinionRecord
	err      error
}

func (f *fakeSource) FetchSubmissionDetail(context.Context, string) (*store.SubmissionDetail, error) {
	return f.detail, f.err
}

func (f *fakeSource) FetchReviewOpinions(context.Context, string) ([]store.ReviewOpinionRecord, error) {
	return f.opinions, nil
}

type fakePrinter struct {
	html string
	err  error
}

func (p *fakePrinter) PrintPDF(_ context.Context, html string) ([]byte, error) {
	p.html = html
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeObjects struct {
	keys []string
	err  error
}

func (o *fakeObjects) Put(_ context.Context, key string, _ []byte, _ string) error {
	if o.err != nil {
		return o.err
	}
	o.keys = append(o.keys, key)
	return nil
}

func ptr[T any](v T) *T { return &v }

func sampleDetail() *store.SubmissionDetail {
	return &store.SubmissionDetail{
		ID:           "sub-1",
		Title:        "On Engines",
		Abstract:     ptr("A short <abstract>"),
		ContentMD:    ptr("# Heading\n\nBody <script>alert(1)</script>"),
		UpdatedAt:    time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
		Status:       store.StatusAccepted,
		Author:       &store.UserProfile{Username: ptr("ada")},
		Keywords:     []string{"alpha", "beta"},
		VersionLabel: ptr("20260209_V1.3"),
	}
}

func TestRenderHTMLIncludesSanitizedContent(t *testing.T) {
	svc := NewService(&fakeSource{detail: sampleDetail()}, &fakePrinter{}, nil, nil)

	html, detail, err := svc.RenderHTML(context.Background(), Request{SubmissionID: "sub-1"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", detail.ID)

	assert.Contains(t, html, "<title>On Engines</title>")
	assert.Contains(t, html, "<h1>Heading</h1>")
	assert.Contains(t, html, "A short &lt;abstract&gt;")
	assert.Contains(t, html, "Accepted")
	assert.Contains(t, html, "20260209_V1.3")
	assert.Contains(t, html, "2026-02-09")
	assert.Contains(t, html, "<span>alpha</span>")
	assert.NotContains(t, html, "<script>alert")
	assert.NotContains(t, html, "Review opinions")
}

func TestRenderHTMLWithReviews(t *testing.T) {
	decision := store.DecisionAccept
	source := &fakeSource{
		detail: sampleDetail(),
		opinions: []store.ReviewOpinionRecord{{
			ID:            "op-1",
			BodyMD:        ptr("Solid **work**"),
			Status:        store.OpinionOpen,
			Decision:      &decision,
			AuthorReplyMD: ptr("Thanks"),
			Reviewer:      &store.UserProfile{Username: ptr("grace")},
		}},
	}
	svc := NewService(source, &fakePrinter{}, nil, nil)

	html, _, err := svc.RenderHTML(context.Background(), Request{SubmissionID: "sub-1", IncludeReviews: true})
	require.NoError(t, err)

	assert.Contains(t, html, "Review opinions")
	assert.Contains(t, html, "grace")
	assert.Contains(t, html, "<strong>work</strong>")
	assert.Contains(t, html, `<div class="reply"><p>Thanks</p>`)
}

func TestExportUploadsUnderVersionLabel(t *testing.T) {
	objects := &fakeObjects{}
	printer := &fakePrinter{}
	svc := NewService(&fakeSource{detail: sampleDetail()}, printer, objects, nil)

	res, err := svc.Export(context.Background(), Request{SubmissionID: "sub-1", Upload: true})
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, "On-Engines_20260209_V1.3.pdf", res.Filename)
	assert.Equal(t, []byte("%PDF-1.7"), res.Data)
	assert.Equal(t, "submissions/sub-1/20260209_V1.3.pdf", res.ObjectKey)
	assert.Equal(t, []string{"submissions/sub-1/20260209_V1.3.pdf"}, objects.keys)
	assert.NotEmpty(t, printer.html)
}

func TestExportUploadFailureStillReturnsPDF(t *testing.T) {
	svc := NewService(&fakeSource{detail: sampleDetail()}, &fakePrinter{}, &fakeObjects{err: errors.New("bucket gone")}, nil)

	res, err := svc.Export(context.Background(), Request{SubmissionID: "sub-1", Upload: true})
	require.NoError(t, err)
	assert.Empty(t, res.ObjectKey)
	assert.NotEmpty(t, res.Data)
}

func TestExportErrors(t *testing.T) {
	_, err := NewService(&fakeSource{}, &fakePrinter{}, nil, nil).Export(context.Background(), Request{SubmissionID: "missing"})
	assert.ErrorIs(t, err, ErrSubmissionNotFound)

	printErr := errors.New("no chrome")
	_, err = NewService(&fakeSource{detail: sampleDetail()}, &fakePrinter{err: printErr}, nil, nil).Export(context.Background(), Request{SubmissionID: "sub-1"})
	assert.ErrorIs(t, err, printErr)
}

func TestObjectKeyAndFilename(t *testing.T) {
	assert.Equal(t, "submissions/s/unversioned.pdf", ObjectKey("s", ""))
	assert.Equal(t, "submission", sanitizeFilename("???"))
	assert.Equal(t, "a-b_c", sanitizeFilename("a b_c!"))
}

func TestPercentEncodeForDataURL(t *testing.T) {
	assert.Equal(t, "a%20b%3C%2Fp%3E", percentEncodeForDataURL("a b</p>"))
	assert.Equal(t, "%C3%A9", percentEncodeForDataURL("é"))
}
