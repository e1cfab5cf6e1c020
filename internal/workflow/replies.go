package workflow

import (
	"errors"

	"journal/api/internal/store"
)

var ErrReplyNotPermitted = errors.New("reply not permitted")

// ReplyPermission decides whether userID may reply in an opinion thread and in
// which role. The submission author wins when the same user is both.
func ReplyPermission(userID, submissionAuthorID, opinionReviewerID string) (store.ReplyRole, bool) {
	if userID == "" {
		return "", false
	}
	if userID == submissionAuthorID {
		return store.ReplyRoleAuthor, true
	}
	if userID == opinionReviewerID {
		return store.ReplyRoleReviewer, true
	}
	return "", false
}

// ValidateReplyRole rejects a reply whose claimed role differs from the one
// the user is entitled to.
func ValidateReplyRole(role store.ReplyRole, userID, submissionAuthorID, opinionReviewerID string) error {
	want, ok := ReplyPermission(userID, submissionAuthorID, opinionReviewerID)
	if !ok || want != role {
		return ErrReplyNotPermitted
	}
	return nil
}
