// Package timerex integrates the TimeRex meeting scheduler: an inbound
// webhook that records confirmed bookings and a REST client that lists them.
package timerex

import (
	"fmt"
	"time"

	"github.com/contact-app/followup/internal/domain"
)

// Webhook types sent by TimeRex.
const (
	WebhookEventConfirmed = "event_confirmed"
	WebhookEventCancelled = "event_cancelled"
)

// AuthHeader carries the shared secret configured in TimeRex.
const AuthHeader = "X-TimeRex-Authorization"

// WebhookPayload is the body TimeRex posts for every webhook.
type WebhookPayload struct {
	WebhookType string `json:"webhook_type"`
	Event       Event  `json:"event"`
}

// Event is a single booked meeting.
type Event struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	CreatedAt     time.Time `json:"created_at"`
	StartDatetime time.Time `json:"start_datetime"`
	GuestEmail    string    `json:"guest_email"`
}

// Booking converts e into the stored form. A missing created_at is taken to
// be now.
func (e Event) Booking(now time.Time) (*domain.Booking, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if e.CompanyID == "" {
		return nil, fmt.Errorf("event %s has no company_id", e.ID)
	}
	bookedAt := e.CreatedAt
	if bookedAt.IsZero() {
		bookedAt = now
	}
	return &domain.Booking{
		ExternalID: e.ID,
		CompanyID:  e.CompanyID,
		GuestEmail: e.GuestEmail,
		StartsAt:   e.StartDatetime,
		BookedAt:   bookedAt,
	}, nil
}
