package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"journal/api/internal/store"
)

func TestReplyPermission(t *testing.T) {
	cases := []struct {
		name     string
		user     string
		wantRole store.ReplyRole
		wantOK   bool
	}{
		{name: "author", user: "A", wantRole: store.ReplyRoleAuthor, wantOK: true},
		{name: "reviewer", user: "R", wantRole: store.ReplyRoleReviewer, wantOK: true},
		{name: "stranger", user: "X"},
		{name: "anonymous", user: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, ok := ReplyPermission(tc.user, "A", "R")
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantRole, role)
		})
	}
}

func TestReplyPermissionAuthorWinsWhenAlsoReviewer(t *testing.T) {
	role, ok := ReplyPermission("A", "A", "A")
	assert.True(t, ok)
	assert.Equal(t, store.ReplyRoleAuthor, role)
}

func TestReplyPermissionIgnoresMissingIDs(t *testing.T) {
	_, ok := ReplyPermission("", "", "")
	assert.False(t, ok)
}

func TestValidateReplyRole(t *testing.T) {
	assert.NoError(t, ValidateReplyRole(store.ReplyRoleAuthor, "A", "A", "R"))
	assert.NoError(t, ValidateReplyRole(store.ReplyRoleReviewer, "R", "A", "R"))
	assert.ErrorIs(t, ValidateReplyRole(store.ReplyRoleReviewer, "A", "A", "R"), ErrReplyNotPermitted)
	assert.ErrorIs(t, ValidateReplyRole(store.ReplyRoleAuthor, "X", "A", "R"), ErrReplyNotPermitted)
}
