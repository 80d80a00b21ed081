package followup

import (
	"context"
	"time"

	"github.com/contact-app/followup/internal/domain"
)

// Repository defines the data access contract for followup records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single record. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Followup, error)

	// FindActive returns the scheduled record for key, or ErrNotFound.
	FindActive(ctx context.Context, key domain.FollowupKey) (*domain.Followup, error)

	// CreateScheduled inserts f atomically. Returns ErrRaceLost when another
	// scheduled record already holds the same key.
	CreateScheduled(ctx context.Context, f *domain.Followup) error

	// FindDue returns scheduled records with scheduled_for <= now whose
	// company and document are not soft-deleted, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.DueFollowup, error)

	// GetDue returns one record joined with its company and document.
	// Returns ErrNotFound when either side is missing or soft-deleted.
	GetDue(ctx context.Context, id string) (*domain.DueFollowup, error)

	// Cancel, MarkSent and MarkFailed succeed only while the record is
	// scheduled. They return ErrInvalidTransition for a terminal record and
	// ErrNotFound for a missing one.
	Cancel(ctx context.Context, id string, reason domain.CancellationReason, now time.Time) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, message string, now time.Time) error

	// CancelScheduledForCompany cancels every scheduled record of a company
	// and returns how many were cancelled.
	CancelScheduledForCompany(ctx context.Context, companyID string, reason domain.CancellationReason, now time.Time) (int, error)

	// CountTerminalOlderThan counts records per status whose updated_at is
	// before cutoff.
	CountTerminalOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.FollowupStatus) (map[domain.FollowupStatus]int, error)

	// ListTerminalOlderThan returns the rows DeleteTerminalOlderThan would
	// remove. A limit <= 0 means no limit.
	ListTerminalOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.FollowupStatus, limit int) ([]domain.Followup, error)

	// DeleteTerminalOlderThan removes matching rows in one statement and
	// returns the number actually deleted.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.FollowupStatus) (int64, error)
}
