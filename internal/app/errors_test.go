package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"journal/api/internal/auth"
	"journal/api/internal/export"
	"journal/api/internal/gitrepo"
	"journal/api/internal/journal"
	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain", notFound("Submission"), http.StatusNotFound, "NOT_FOUND"},
		{"sign in", workflow.ErrSignInRequired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired token", fmt.Errorf("set session: %w", auth.ErrExpiredToken), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"cannot submit", workflow.ErrSubmitNotAllowed, http.StatusForbidden, "FORBIDDEN"},
		{"missing field", fmt.Errorf("%w: title", workflow.ErrMissingField), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"edit blocked", workflow.ErrEditBlocked, http.StatusConflict, "EDIT_BLOCKED"},
		{"slot taken", journal.ErrSlotUnavailable, http.StatusConflict, "SLOT_UNAVAILABLE"},
		{"export missing", export.ErrSubmissionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"no history", gitrepo.ErrNoHistory, http.StatusNotFound, "NOT_FOUND"},
		{"no chromium", fmt.Errorf("%w: chromium", export.ErrPDFDependencyMissing), http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE"},
		{"rls", &store.QueryError{Message: "denied", Code: store.CodeInsufficientPrivilege}, http.StatusForbidden, "FORBIDDEN"},
		{"duplicate", &store.QueryError{Message: "dup", Code: store.CodeUniqueViolation}, http.StatusConflict, "CONFLICT"},
		{"bad order column", &store.QueryError{Message: "unsupported order column x", Code: store.CodeInvalidParameter}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"backend", &store.QueryError{Message: "boom"}, http.StatusBadGateway, "QUERY_ERROR"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, code, _, _ := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestMapErrorKeepsBackendMessage(t *testing.T) {
	_, _, message, _ := mapError(&store.QueryError{Message: "column users.role does not exist"})
	assert.Equal(t, "column users.role does not exist", message)

	_, _, message, details := mapError(forbidden("decide"))
	assert.Equal(t, "Forbidden", message)
	assert.Equal(t, map[string]string{"action": "decide"}, details)
}
