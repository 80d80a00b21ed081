package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FollowupStatus enumerates the lifecycle states of a followup record.
type FollowupStatus string

const (
	FollowupScheduled FollowupStatus = "scheduled"
	FollowupSent      FollowupStatus = "sent"
	FollowupCancelled FollowupStatus = "cancelled"
	FollowupFailed    FollowupStatus = "failed"
)

// TerminalFollowupStatuses lists every state a record can end in.
var TerminalFollowupStatuses = []FollowupStatus{FollowupSent, FollowupCancelled, FollowupFailed}

// IsTerminal reports whether no further transition is allowed from s.
func (s FollowupStatus) IsTerminal() bool {
	return s == FollowupSent || s == FollowupCancelled || s == FollowupFailed
}

// Valid reports whether s is a known status.
func (s FollowupStatus) Valid() bool {
	return s == FollowupScheduled || s.IsTerminal()
}

// CancellationReason explains why a scheduled followup was cancelled.
type CancellationReason string

const (
	ReasonUserDismissed CancellationReason = "user_dismissed"
	ReasonTimeRexBooked CancellationReason = "timerex_booked"
	ReasonUserCancelled CancellationReason = "user_cancelled"
	ReasonTimerReset    CancellationReason = "timer_reset"
)

// Valid reports whether r is one of the four accepted reasons.
func (r CancellationReason) Valid() bool {
	switch r {
	case ReasonUserDismissed, ReasonTimeRexBooked, ReasonUserCancelled, ReasonTimerReset:
		return true
	}
	return false
}

// ErrInvalidTransition is returned by the transition methods when the record
// has already left the scheduled state.
var ErrInvalidTransition = errors.New("invalid followup status transition")

// FollowupKey identifies one viewer's engagement with one document of one
// company. At most one scheduled record exists per key.
type FollowupKey struct {
	CompanyID  string `json:"company_id"`
	DocumentID string `json:"document_id"`
	ViewerIP   string `json:"viewer_ip"`
}

func (k FollowupKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CompanyID, k.DocumentID, k.ViewerIP)
}

// Followup is the persisted state machine for one delayed followup email.
type Followup struct {
	ID                 string              `json:"id" db:"id"`
	CompanyID          string              `json:"company_id" db:"company_id"`
	DocumentID         string              `json:"document_id" db:"document_id"`
	ViewerIP           string              `json:"viewer_ip" db:"viewer_ip"`
	TriggeredAt        time.Time           `json:"triggered_at" db:"triggered_at"`
	ScheduledFor       time.Time           `json:"scheduled_for" db:"scheduled_for"`
	SentAt             *time.Time          `json:"sent_at" db:"sent_at"`
	Status             FollowupStatus      `json:"status" db:"status"`
	CancellationReason *CancellationReason `json:"cancellation_reason" db:"cancellation_reason"`
	ErrorMessage       *string             `json:"error_message" db:"error_message"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// NewFollowup builds a scheduled record firing delay after triggeredAt.
// A fresh uuid is assigned here; storage never invents ids.
func NewFollowup(key FollowupKey, triggeredAt time.Time, delay time.Duration) (*Followup, error) {
	if key.CompanyID == "" || key.DocumentID == "" || key.ViewerIP == "" {
		return nil, fmt.Errorf("followup key is incomplete: %s", key)
	}
	if delay < 0 {
		return nil, fmt.Errorf("followup delay must not be negative: %s", delay)
	}
	return &Followup{
		ID:           uuid.New().String(),
		CompanyID:    key.CompanyID,
		DocumentID:   key.DocumentID,
		ViewerIP:     key.ViewerIP,
		TriggeredAt:  triggeredAt,
		ScheduledFor: triggeredAt.Add(delay),
		Status:       FollowupScheduled,
		CreatedAt:    triggeredAt,
		UpdatedAt:    triggeredAt,
	}, nil
}

// Key returns the triple the uniqueness invariant is defined over.
func (f *Followup) Key() FollowupKey {
	return FollowupKey{CompanyID: f.CompanyID, DocumentID: f.DocumentID, ViewerIP: f.ViewerIP}
}

// IsTerminal returns true if the followup is in a final state.
func (f *Followup) IsTerminal() bool {
	return f.Status.IsTerminal()
}

// IsDue reports whether a scheduled record should be dispatched at now.
func (f *Followup) IsDue(now time.Time) bool {
	return f.Status == FollowupScheduled && !f.ScheduledFor.After(now)
}

// Cancel moves a scheduled record to cancelled.
func (f *Followup) Cancel(reason CancellationReason, now time.Time) error {
	if !reason.Valid() {
		return fmt.Errorf("unknown cancellation reason %q", reason)
	}
	if f.IsTerminal() {
		return ErrInvalidTransition
	}
	f.Status = FollowupCancelled
	f.CancellationReason = &reason
	f.UpdatedAt = now
	return nil
}

// MarkSent moves a scheduled record to sent.
func (f *Followup) MarkSent(now time.Time) error {
	if f.IsTerminal() {
		return ErrInvalidTransition
	}
	f.Status = FollowupSent
	f.SentAt = &now
	f.UpdatedAt = now
	return nil
}

// MarkFailed moves a scheduled record to failed, keeping the error text.
func (f *Followup) MarkFailed(message string, now time.Time) error {
	if f.IsTerminal() {
		return ErrInvalidTransition
	}
	f.Status = FollowupFailed
	f.ErrorMessage = &message
	f.UpdatedAt = now
	return nil
}

// DueFollowup is a due record joined with what the email needs to render.
type DueFollowup struct {
	Followup Followup `json:"followup"`
	Company  Company  `json:"company"`
	Document Document `json:"document"`
}
