package wizard

import (
	"errors"
	"fmt"
	"net/http"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/validation"
)

const (
	errorTemplate  = "error"
	genericMessage = "Sorry, there is a problem with the service"
)

// DomainError carries the HTTP status and page a failure is shown with.
// An empty Template means the generic error page.
type DomainError struct {
	Status   int
	Code     string
	Message  string
	Template string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message, template string) *DomainError {
	return &DomainError{
		Status:   status,
		Code:     code,
		Message:  message,
		Template: template,
	}
}

// Precondition failures. These are programming or deployment faults, never
// something the user can correct, and render the generic error page.
var (
	ErrSessionNotFound          = domainError(http.StatusInternalServerError, "SESSION_NOT_FOUND", "session not found", "")
	ErrApplicationDataUndefined = domainError(http.StatusInternalServerError, "APPLICATION_DATA_UNDEFINED", "application data undefined", "")
	ErrPenaltyListMissing       = domainError(http.StatusInternalServerError, "PENALTY_LIST_MISSING", "penalty list missing from appeal", "")
	ErrNoPenalties              = domainError(http.StatusInternalServerError, "NO_PENALTIES", "no penalties found for company", "")
	ErrAccessTokenMissing       = domainError(http.StatusInternalServerError, "ACCESS_TOKEN_MISSING", "access token missing from session", "")
	ErrAppealMissing            = domainError(http.StatusInternalServerError, "APPEAL_MISSING", "appeal missing from application data", "")
)

// Business rule failures stop the flow on a page of their own.
var (
	ErrDuplicateAppeal = domainError(http.StatusConflict, "DUPLICATE_APPEAL", "an appeal has already been submitted for this penalty", "duplicate-appeal")
)

var ErrMalformedForm = domainError(http.StatusBadRequest, "MALFORMED_FORM", "request body could not be read", "")

// InvalidForm is returned by Resolve when a well-formed submission is
// rejected by what the lookup found. The page re-renders with Result and
// nothing is saved.
type InvalidForm struct {
	Result validation.Result
}

func (e *InvalidForm) Error() string {
	if e == nil || len(e.Result.Errors) == 0 {
		return "invalid form"
	}
	return "invalid form: " + e.Result.Errors[0].Field
}

// Invalid rejects field with message from a Resolve hook.
func Invalid(field, message string) error {
	var result validation.Result
	result.Add(field, message)
	return &InvalidForm{Result: result}
}

func mapError(err error) (status int, code, template string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		template = domainErr.Template
		if template == "" {
			template = errorTemplate
		}
		return domainErr.Status, domainErr.Code, template
	}
	if errors.Is(err, appeal.ErrPermissionNotFound) {
		return http.StatusInternalServerError, "PERMISSION_NOT_FOUND", errorTemplate
	}
	return http.StatusInternalServerError, "SERVER_ERROR", errorTemplate
}
