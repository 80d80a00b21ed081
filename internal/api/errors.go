package api

import (
	"errors"
	"net/http"

	"github.com/contact-app/followup/internal/pkg/httputil"
	"github.com/contact-app/followup/internal/scoring"
	"github.com/contact-app/followup/internal/service/engagement"
	"github.com/contact-app/followup/internal/service/followup"
	"github.com/contact-app/followup/internal/settings"
)

// errorStatus maps a service sentinel to a status and machine code.
// Unknown errors map to 500 and are never echoed to the client.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, followup.ErrNotFound), errors.Is(err, settings.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, followup.ErrInvalidReason):
		return http.StatusBadRequest, "invalid_reason"
	case errors.Is(err, followup.ErrInvalidRetention):
		return http.StatusBadRequest, "invalid_retention"
	case errors.Is(err, engagement.ErrInvalidEvent), errors.Is(err, scoring.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, settings.ErrInvalidValue):
		return http.StatusUnprocessableEntity, "invalid_setting"
	case errors.Is(err, followup.ErrFollowupDisabled):
		return http.StatusConflict, "followup_disabled"
	case errors.Is(err, followup.ErrRaceLost):
		return http.StatusConflict, "race_lost"
	case errors.Is(err, followup.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, followup.ErrTransportFailure):
		return http.StatusBadGateway, "transport_failure"
	}
	return http.StatusInternalServerError, ""
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		httputil.Internal(w, r, err)
	case http.StatusBadGateway:
		httputil.Fail(w, r, status, code, "upstream delivery failed")
	default:
		httputil.Fail(w, r, status, code, err.Error())
	}
}
