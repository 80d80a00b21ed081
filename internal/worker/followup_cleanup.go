package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/contact-app/followup/internal/pkg/distlock"
	"github.com/contact-app/followup/internal/service/followup"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
	CleanupLockKey         = "followup-cleanup"
	CleanupLockTTL         = 30 * time.Minute
)

// Sweeper is satisfied by *followup.Sweeper.
type Sweeper interface {
	Run(ctx context.Context, opts followup.SweepOptions, now time.Time) (followup.SweepResult, error)
}

// FollowupCleanupWorker deletes terminal followups past the retention
// window once per interval. Scheduled records are never touched.
type FollowupCleanupWorker struct {
	sweeper  Sweeper
	newLock  LockFactory
	interval time.Duration
	days     int
	now      func() time.Time
}

func NewFollowupCleanupWorker(sweeper Sweeper, newLock LockFactory, days int) *FollowupCleanupWorker {
	if days < 1 {
		days = followup.DefaultRetentionDays
	}
	return &FollowupCleanupWorker{
		sweeper:  sweeper,
		newLock:  newLock,
		interval: DefaultCleanupInterval,
		days:     days,
		now:      time.Now,
	}
}

// SetInterval overrides the hourly default.
func (w *FollowupCleanupWorker) SetInterval(d time.Duration) {
	if d > 0 {
		w.interval = d
	}
}

// Start blocks until ctx is cancelled, running once immediately.
func (w *FollowupCleanupWorker) Start(ctx context.Context) {
	log.Printf("[FollowupCleanup] Starting (interval=%s, retention=%dd)", w.interval, w.days)

	w.runLogged(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[FollowupCleanup] Stopping")
			return
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *FollowupCleanupWorker) runLogged(ctx context.Context) {
	start := time.Now()
	res, ran, err := w.RunOnce(ctx)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			log.Printf("[FollowupCleanup] cycle failed: %v", err)
		}
	case !ran:
		log.Printf("[FollowupCleanup] cycle skipped, lock held elsewhere")
	default:
		log.Printf("[FollowupCleanup] cycle done in %s: matched=%d deleted=%d archived=%d",
			time.Since(start).Round(time.Millisecond), res.Preview.Total, res.Deleted, res.Archived)
	}
}

// RunOnce performs one non-dry-run sweep. ran is false when the cleanup
// lock is held by another process.
func (w *FollowupCleanupWorker) RunOnce(ctx context.Context) (followup.SweepResult, bool, error) {
	var res followup.SweepResult
	run := func(ctx context.Context) error {
		var err error
		res, err = w.sweeper.Run(ctx, followup.SweepOptions{Days: w.days}, w.now().UTC())
		if err != nil {
			return fmt.Errorf("sweep followups: %w", err)
		}
		return nil
	}

	if w.newLock == nil {
		return res, true, run(ctx)
	}
	ran, err := distlock.WithLock(ctx, w.newLock(), run)
	return res, ran, err
}
