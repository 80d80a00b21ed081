package followup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/contact-app/followup/internal/domain"
)

const (
	DefaultBookingLookback = 24 * time.Hour
	defaultLookupTimeout   = 10 * time.Second
)

// BookingSource lists TimeRex bookings made for a company.
type BookingSource interface {
	BookingsSince(ctx context.Context, companyID string, since time.Time) ([]domain.Booking, error)
}

// BookingCheck is the outcome of a booking-conflict check. A recent booking
// is a normal result, not an error.
type BookingCheck struct {
	HasRecentBooking bool `json:"has_recent_booking"`
	Cancelled        int  `json:"cancelled"`
}

// BookingResolver cancels pending followups for companies that have already
// booked a meeting.
type BookingResolver struct {
	repo     Repository
	source   BookingSource
	lookback time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewBookingResolver creates a resolver. A lookback <= 0 uses
// DefaultBookingLookback.
func NewBookingResolver(repo Repository, source BookingSource, lookback time.Duration) *BookingResolver {
	if lookback <= 0 {
		lookback = DefaultBookingLookback
	}
	return &BookingResolver{
		repo:     repo,
		source:   source,
		lookback: lookback,
		timeout:  defaultLookupTimeout,
		now:      time.Now,
	}
}

// CheckAndCancelForTimeRexBooking looks for a booking made within the
// lookback window and, if one exists, cancels every scheduled followup of
// the company with reason timerex_booked.
func (r *BookingResolver) CheckAndCancelForTimeRexBooking(ctx context.Context, companyID string) (BookingCheck, error) {
	return r.CheckAndCancelSince(ctx, companyID, time.Time{})
}

// CheckAndCancelSince is CheckAndCancelForTimeRexBooking with the window
// widened back to triggeredAt when that is older than the lookback, so a
// booking made any time after the followup was triggered counts.
func (r *BookingResolver) CheckAndCancelSince(ctx context.Context, companyID string, triggeredAt time.Time) (BookingCheck, error) {
	now := r.now()
	since := now.Add(-r.lookback)
	if !triggeredAt.IsZero() && triggeredAt.Before(since) {
		since = triggeredAt
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	bookings, err := r.source.BookingsSince(lookupCtx, companyID, since)
	cancel()
	if err != nil {
		return BookingCheck{}, fmt.Errorf("list bookings for company %s: %w", companyID, err)
	}
	if len(bookings) == 0 {
		return BookingCheck{}, nil
	}

	n, err := r.repo.CancelScheduledForCompany(ctx, companyID, domain.ReasonTimeRexBooked, now)
	if err != nil {
		return BookingCheck{HasRecentBooking: true}, fmt.Errorf("cancel followups for company %s: %w", companyID, err)
	}
	if n > 0 {
		log.Printf("[followup.BookingResolver] company %s booked %s: cancelled %d followup(s)",
			companyID, bookings[0].StartsAt.Format(time.RFC3339), n)
	}
	return BookingCheck{HasRecentBooking: true, Cancelled: n}, nil
}
