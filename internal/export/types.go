// Package export renders submissions to PDF.
package export

import (
	"errors"
)

type Request struct {
	SubmissionID   string
	IncludeReviews bool
	// Upload stores the PDF in object storage when one is configured.
	Upload bool
}

type Result struct {
	Data      []byte
	Filename  string
	MimeType  string
	ObjectKey string
}

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
