package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"journal/api/internal/store"
)

var (
	ErrSignInRequired   = errors.New("sign in first")
	ErrSubmitNotAllowed = errors.New("this account cannot submit")
	ErrMissingField     = errors.New("required field is empty")
	ErrNotAuthor        = errors.New("only the author can edit this submission")
	ErrEditBlocked      = errors.New("decided submissions cannot be edited")
)

type EditPolicy string

const (
	EditAllowAll     EditPolicy = "allow_all"
	EditBlockDecided EditPolicy = "block_decided"
)

func ParseEditPolicy(raw string) (EditPolicy, error) {
	switch EditPolicy(strings.TrimSpace(raw)) {
	case "", EditAllowAll:
		return EditAllowAll, nil
	case EditBlockDecided:
		return EditBlockDecided, nil
	default:
		return "", fmt.Errorf("unknown edit policy %q", raw)
	}
}

func (p EditPolicy) AllowsEdit(status store.SubmissionStatus) bool {
	if p == EditBlockDecided {
		return !status.IsDecided()
	}
	return true
}

// Draft is the form input for creating or editing a submission.
type Draft struct {
	Title             string
	Abstract          string
	ContentMD         string
	Keywords          string
	AuthorName        *string
	AuthorEmail       *string
	AuthorAffiliation *string
}

func (d Draft) validate() error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return fmt.Errorf("%w: title", ErrMissingField)
	case strings.TrimSpace(d.Abstract) == "":
		return fmt.Errorf("%w: abstract", ErrMissingField)
	case strings.TrimSpace(d.ContentMD) == "":
		return fmt.Errorf("%w: content", ErrMissingField)
	}
	return nil
}

// PrepareSubmission checks the session and capability and turns a draft into
// the create payload. A profile that has not loaded yet counts as no capability.
func PrepareSubmission(userID string, profile *store.Profile, d Draft) (store.SubmissionCreate, error) {
	if userID == "" {
		return store.SubmissionCreate{}, ErrSignInRequired
	}
	if profile == nil || !profile.CanSubmit {
		return store.SubmissionCreate{}, ErrSubmitNotAllowed
	}
	if err := d.validate(); err != nil {
		return store.SubmissionCreate{}, err
	}
	return store.SubmissionCreate{
		Title:             strings.TrimSpace(d.Title),
		Abstract:          strings.TrimSpace(d.Abstract),
		ContentMD:         d.ContentMD,
		AuthorID:          userID,
		AuthorName:        d.AuthorName,
		AuthorEmail:       d.AuthorEmail,
		AuthorAffiliation: d.AuthorAffiliation,
		Keywords:          ParseKeywords(d.Keywords),
	}, nil
}

// PrepareContentUpdate checks authorship and policy and bumps the version.
func PrepareContentUpdate(current store.SubmissionDetail, userID string, policy EditPolicy, d Draft, now time.Time) (store.SubmissionContentUpdate, error) {
	if userID == "" {
		return store.SubmissionContentUpdate{}, ErrSignInRequired
	}
	if current.AuthorID == nil || *current.AuthorID != userID {
		return store.SubmissionContentUpdate{}, ErrNotAuthor
	}
	if !policy.AllowsEdit(current.Status) {
		return store.SubmissionContentUpdate{}, ErrEditBlocked
	}
	if err := d.validate(); err != nil {
		return store.SubmissionContentUpdate{}, err
	}
	v := NextVersion(current.VersionMajor, current.VersionMinor, now)
	return store.SubmissionContentUpdate{
		Title:        strings.TrimSpace(d.Title),
		Abstract:     strings.TrimSpace(d.Abstract),
		ContentMD:    d.ContentMD,
		Keywords:     ParseKeywords(d.Keywords),
		VersionMajor: v.Major,
		VersionMinor: v.Minor,
		VersionLabel: v.Label,
	}, nil
}
