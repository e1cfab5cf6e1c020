package app

import (
	"errors"
	"fmt"
	"net/http"

	"journal/api/internal/auth"
	"journal/api/internal/export"
	"journal/api/internal/gitrepo"
	"journal/api/internal/journal"
	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func forbidden(action string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]string{"action": action})
}

func invalid(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

// mapError turns any error the service returns into the HTTP response shape.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	switch {
	case errors.Is(err, workflow.ErrSignInRequired):
		return http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, workflow.ErrSubmitNotAllowed),
		errors.Is(err, workflow.ErrNotAuthor),
		errors.Is(err, workflow.ErrReplyNotPermitted):
		return http.StatusForbidden, "FORBIDDEN", err.Error(), nil
	case errors.Is(err, workflow.ErrMissingField),
		errors.Is(err, workflow.ErrInvalidStatus),
		errors.Is(err, workflow.ErrReviewerRequired),
		errors.Is(err, journal.ErrUsernameRequired):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, workflow.ErrEditBlocked):
		return http.StatusConflict, "EDIT_BLOCKED", err.Error(), nil
	case errors.Is(err, journal.ErrSlotUnavailable):
		return http.StatusConflict, "SLOT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, export.ErrSubmissionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Submission not found", nil
	case errors.Is(err, gitrepo.ErrNoHistory):
		return http.StatusNotFound, "NOT_FOUND", "No history for this submission", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available", nil
	}

	var qe *store.QueryError
	if errors.As(err, &qe) {
		switch qe.Code {
		case store.CodeInsufficientPrivilege:
			return http.StatusForbidden, "FORBIDDEN", qe.Message, nil
		case store.CodeUniqueViolation:
			return http.StatusConflict, "CONFLICT", qe.Message, nil
		case store.CodeInvalidParameter:
			return http.StatusUnprocessableEntity, "VALIDATION_ERROR", qe.Message, nil
		}
		return http.StatusBadGateway, "QUERY_ERROR", qe.Message, nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
