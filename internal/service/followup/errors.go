package followup

import (
	"errors"

	"github.com/contact-app/followup/internal/domain"
)

// Sentinel errors for the followup service layer.
var (
	ErrNotFound          = errors.New("followup not found")
	ErrRaceLost          = errors.New("scheduled followup already exists for this viewer")
	ErrInvalidTransition = domain.ErrInvalidTransition
	ErrTransportFailure  = errors.New("followup transport failure")
	ErrFollowupDisabled  = errors.New("followup emails are disabled")
	ErrInvalidReason     = errors.New("invalid cancellation reason")
	ErrInvalidRetention  = errors.New("retention must be at least one day")
)
