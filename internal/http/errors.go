package http

import (
	"errors"
	"net/http"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/log"
	"hisab/internal/views"
)

const msgSubmitInFlight = "A submission is already in progress"

// statusFor classifies a handler error into its response status.
func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.Is(err, views.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotAuthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// logFailure records err at a level matching its status.
func logFailure(r *http.Request, status int, msg string, err error) {
	logger := log.FromContext(r.Context())
	switch status {
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), msg,
			log.FieldError, err,
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeDatabase)
	case http.StatusUnprocessableEntity:
		logger.DebugContext(r.Context(), msg, log.FieldError, err, log.FieldErrorType, log.ErrorTypeValidation)
	default:
		logger.WarnContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	}
}

// mutationFailed answers a failed row action: the list stays as it is and
// the user gets one error notification.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	msg := ledger.UserMessage(err, fallback)
	logFailure(r, status, fallback, err)

	if status == http.StatusUnauthorized {
		UnauthorizedError(msg, loginPath).Write(w)
		return
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

// submitFailed answers a failed form submit. Validation and store failures
// re-render the form with the input kept; the in-flight case leaves the form
// alone.
func (s *Server) submitFailed(w http.ResponseWriter, r *http.Request, err error, fallback, form string, data func(msg string) any) {
	status := statusFor(err)
	logFailure(r, status, fallback, err)

	switch status {
	case http.StatusConflict:
		ConflictError(msgSubmitInFlight).TriggerErrorNotification(msgSubmitInFlight).Write(w)
	case http.StatusUnauthorized:
		UnauthorizedError(ledger.ErrNotAuthenticated.Error(), loginPath).Write(w)
	default:
		msg := ledger.UserMessage(err, fallback)
		b := NewHTMXResponse().Status(status).TriggerErrorNotification(msg)
		s.render(w, r, b, form, data(msg))
	}
}
