package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"journal/api/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var submissionTemplate = template.Must(template.New("submission.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"statusLabel": statusLabel,
}).ParseFS(templateFS, "templates/submission.html"))

type TemplateData struct {
	Title        string
	Abstract     string
	Author       string
	Status       store.SubmissionStatus
	VersionLabel string
	Keywords     []string
	UpdatedAt    time.Time
	ContentHTML  template.HTML
	Opinions     []TemplateOpinion
}

type TemplateOpinion struct {
	Reviewer  string
	Decision  string
	Status    string
	BodyHTML  template.HTML
	ReplyHTML template.HTML
}

func statusLabel(s store.SubmissionStatus) string {
	switch s {
	case store.StatusAccepted:
		return "Accepted"
	case store.StatusRejected:
		return "Rejected"
	case store.StatusInReview:
		return "In review"
	case store.StatusSubmitted:
		return "Submitted"
	default:
		return string(s)
	}
}

func RenderSubmissionHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := submissionTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
