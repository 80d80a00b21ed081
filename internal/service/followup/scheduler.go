package followup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/settings"
)

// maxCreateAttempts bounds the find-or-create loop in StartTimer.
const maxCreateAttempts = 3

// SettingsSource provides the resolved followup configuration.
type SettingsSource interface {
	FollowupSettings(ctx context.Context) (settings.Followup, error)
}

// Scheduler creates and cancels scheduled followups in response to viewer
// activity. It holds no state of its own and is safe for concurrent use.
type Scheduler struct {
	repo     Repository
	settings SettingsSource
}

// NewScheduler creates a scheduler backed by the given repository.
func NewScheduler(repo Repository, src SettingsSource) *Scheduler {
	return &Scheduler{repo: repo, settings: src}
}

// StartTimer returns the active followup for key, creating one that fires
// after the configured delay when none exists. Concurrent callers for the same
// key all receive the same record.
func (s *Scheduler) StartTimer(ctx context.Context, key domain.FollowupKey, now time.Time) (*domain.Followup, error) {
	cfg, err := s.settings.FollowupSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load followup settings: %w", err)
	}
	if !cfg.Enabled {
		return nil, ErrFollowupDisabled
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		existing, err := s.repo.FindActive(ctx, key)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("find active followup: %w", err)
		}

		f, err := domain.NewFollowup(key, now, cfg.Delay())
		if err != nil {
			return nil, err
		}
		err = s.repo.CreateScheduled(ctx, f)
		if err == nil {
			log.Printf("[followup.Scheduler] scheduled %s for %s", f.ID, f.ScheduledFor.Format(time.RFC3339))
			return f, nil
		}
		if !errors.Is(err, ErrRaceLost) {
			return nil, fmt.Errorf("create followup: %w", err)
		}
		// Another request won; the next FindActive returns its record unless
		// it already went terminal.
	}
	return nil, fmt.Errorf("start timer after %d attempts: %w", maxCreateAttempts, ErrRaceLost)
}

// StopTimer cancels the active followup for key. Having nothing to cancel is
// not an error.
func (s *Scheduler) StopTimer(ctx context.Context, key domain.FollowupKey, reason domain.CancellationReason, now time.Time) error {
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	existing, err := s.repo.FindActive(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find active followup: %w", err)
	}

	err = s.repo.Cancel(ctx, existing.ID, reason, now)
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
		log.Printf("[followup.Scheduler] %s left scheduled state before cancel, nothing to do", existing.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel followup %s: %w", existing.ID, err)
	}
	log.Printf("[followup.Scheduler] cancelled %s (%s)", existing.ID, reason)
	return nil
}
