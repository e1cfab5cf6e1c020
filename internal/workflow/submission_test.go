package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal/api/internal/store"
)

func TestParseKeywords(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ParseKeywords("alpha, beta, ,gamma"))
	assert.Equal(t, []string{}, ParseKeywords(""))
	assert.Equal(t, []string{}, ParseKeywords(" , ,"))
	assert.Equal(t, []string{"single"}, ParseKeywords("single"))
}

func TestPrepareSubmission(t *testing.T) {
	draft := Draft{Title: "Test Title", Abstract: "Test Abstract", ContentMD: "Test Content", Keywords: "alpha, beta, ,gamma"}

	t.Run("anonymous", func(t *testing.T) {
		_, err := PrepareSubmission("", nil, draft)
		assert.ErrorIs(t, err, ErrSignInRequired)
	})

	t.Run("no submit capability", func(t *testing.T) {
		_, err := PrepareSubmission("user-1", &store.Profile{ID: "user-1", CanSubmit: false}, draft)
		assert.ErrorIs(t, err, ErrSubmitNotAllowed)
	})

	t.Run("profile not loaded", func(t *testing.T) {
		_, err := PrepareSubmission("user-1", nil, draft)
		assert.ErrorIs(t, err, ErrSubmitNotAllowed)
	})

	t.Run("missing body", func(t *testing.T) {
		d := draft
		d.ContentMD = "  "
		_, err := PrepareSubmission("user-1", &store.Profile{CanSubmit: true}, d)
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("valid", func(t *testing.T) {
		got, err := PrepareSubmission("user-1", &store.Profile{ID: "user-1", CanSubmit: true}, draft)
		require.NoError(t, err)
		assert.Equal(t, store.SubmissionCreate{
			Title:     "Test Title",
			Abstract:  "Test Abstract",
			ContentMD: "Test Content",
			AuthorID:  "user-1",
			Keywords:  []string{"alpha", "beta", "gamma"},
		}, got)
	})
}

func TestPrepareContentUpdate(t *testing.T) {
	now := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	author := "author-1"
	current := store.SubmissionDetail{
		ID:           "submission-1",
		Status:       store.StatusInReview,
		AuthorID:     &author,
		VersionMajor: intPtr(1),
		VersionMinor: intPtr(2),
	}
	draft := Draft{Title: "New Title", Abstract: "New Abstract", ContentMD: "New Content", Keywords: "alpha, beta"}

	got, err := PrepareContentUpdate(current, author, EditAllowAll, draft, now)
	require.NoError(t, err)
	assert.Equal(t, store.SubmissionContentUpdate{
		Title:        "New Title",
		Abstract:     "New Abstract",
		ContentMD:    "New Content",
		Keywords:     []string{"alpha", "beta"},
		VersionMajor: 1,
		VersionMinor: 3,
		VersionLabel: "20260209_V1.3",
	}, got)

	_, err = PrepareContentUpdate(current, "someone-else", EditAllowAll, draft, now)
	assert.ErrorIs(t, err, ErrNotAuthor)

	_, err = PrepareContentUpdate(current, "", EditAllowAll, draft, now)
	assert.ErrorIs(t, err, ErrSignInRequired)

	decided := current
	decided.Status = store.StatusAccepted
	_, err = PrepareContentUpdate(decided, author, EditBlockDecided, draft, now)
	assert.ErrorIs(t, err, ErrEditBlocked)

	_, err = PrepareContentUpdate(decided, author, EditAllowAll, draft, now)
	assert.NoError(t, err)
}

func TestParseEditPolicy(t *testing.T) {
	p, err := ParseEditPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EditAllowAll, p)

	p, err = ParseEditPolicy("block_decided")
	require.NoError(t, err)
	assert.False(t, p.AllowsEdit(store.StatusRejected))
	assert.True(t, p.AllowsEdit(store.StatusInReview))

	_, err = ParseEditPolicy("freeze")
	assert.Error(t, err)
}
