package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/pkg/distlock"
	"github.com/contact-app/followup/internal/queue"
	"github.com/contact-app/followup/internal/service/followup"
)

// =============================================================================
// FOLLOWUP DISPATCH WORKER
// =============================================================================
// Every poll interval the worker asks the store for scheduled followups whose
// fire time has passed and either processes each one inline or publishes it
// to the dispatch queue. Sweeps are stateless: overlapping sweeps on several
// hosts are safe because every transition is guarded by the record status,
// and the sweep lock keeps them from doing duplicate work.

const (
	DefaultDispatchPollInterval = 30 * time.Second
	DefaultDispatchBatchSize    = 100
	DispatchLockTTL             = 5 * time.Minute
	DispatchLockKey             = "followup-dispatch"
)

// DueFinder lists followups that are ready to send.
type DueFinder interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.DueFollowup, error)
}

// FollowupProcessor runs one followup through the dispatch gate.
type FollowupProcessor interface {
	Process(ctx context.Context, id string) (followup.Outcome, error)
}

// JobPublisher hands a followup id to the dispatch queue.
type JobPublisher interface {
	Publish(ctx context.Context, job queue.DispatchJob) error
}

// LockFactory returns a fresh lock per sweep. A nil factory disables locking.
type LockFactory func() distlock.DistLock

// NewLockFactory builds locks on Redis when rdb is set, else on Postgres.
func NewLockFactory(rdb *redis.Client, db *sql.DB, key string, ttl time.Duration) LockFactory {
	return func() distlock.DistLock {
		return distlock.NewLock(rdb, db, key, ttl)
	}
}

// DispatchStats summarises one sweep.
type DispatchStats struct {
	RunID     string `json:"run_id"`
	Locked    bool   `json:"locked"`
	Found     int    `json:"found"`
	Sent      int    `json:"sent"`
	Skipped   int    `json:"skipped"`
	Cancelled int    `json:"cancelled"`
	Failed    int    `json:"failed"`
	Published int    `json:"published"`
}

// FollowupDispatchWorker polls for due followups.
type FollowupDispatchWorker struct {
	finder    DueFinder
	processor FollowupProcessor
	publisher JobPublisher
	newLock   LockFactory

	pollInterval time.Duration
	batchSize    int
	now          func() time.Time

	sweeps int64
	sent   int64
	failed int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewFollowupDispatchWorker creates a worker that processes due followups
// inline. Call SetPublisher to fan out through the queue instead.
func NewFollowupDispatchWorker(finder DueFinder, processor FollowupProcessor, newLock LockFactory) *FollowupDispatchWorker {
	return &FollowupDispatchWorker{
		finder:       finder,
		processor:    processor,
		newLock:      newLock,
		pollInterval: DefaultDispatchPollInterval,
		batchSize:    DefaultDispatchBatchSize,
		now:          time.Now,
	}
}

// SetPublisher routes due ids to the dispatch queue.
func (w *FollowupDispatchWorker) SetPublisher(p JobPublisher) {
	w.publisher = p
}

// SetPollInterval overrides the sweep interval.
func (w *FollowupDispatchWorker) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// SetBatchSize caps how many due rows one sweep loads.
func (w *FollowupDispatchWorker) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

func (w *FollowupDispatchWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("followup dispatch worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())

	mode := "inline"
	if w.publisher != nil {
		mode = "queue"
	}
	log.Printf("[FollowupDispatch] Starting (interval=%s, batch=%d, mode=%s)", w.pollInterval, w.batchSize, mode)

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *FollowupDispatchWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Printf("[FollowupDispatch] Stopping...")
	w.cancel()
	w.wg.Wait()
	log.Printf("[FollowupDispatch] Stopped. Sweeps: %d, sent: %d, failed: %d",
		atomic.LoadInt64(&w.sweeps), atomic.LoadInt64(&w.sent), atomic.LoadInt64(&w.failed))
}

func (w *FollowupDispatchWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(w.ctx); err != nil && w.ctx.Err() == nil {
				log.Printf("[FollowupDispatch] sweep error: %v", err)
			}
		}
	}
}

// RunOnce performs a single sweep. When another process holds the sweep
// lock it returns with Locked set and does nothing.
func (w *FollowupDispatchWorker) RunOnce(ctx context.Context) (DispatchStats, error) {
	stats := DispatchStats{RunID: uuid.NewString()}
	if w.newLock == nil {
		return stats, w.sweep(ctx, &stats)
	}

	ran, err := distlock.WithLock(ctx, w.newLock(), func(ctx context.Context) error {
		return w.sweep(ctx, &stats)
	})
	if err != nil {
		return stats, err
	}
	if !ran {
		stats.Locked = true
		log.Printf("[FollowupDispatch] sweep skipped, lock held elsewhere")
	}
	return stats, nil
}

func (w *FollowupDispatchWorker) sweep(ctx context.Context, stats *DispatchStats) error {
	atomic.AddInt64(&w.sweeps, 1)
	now := w.now().UTC()

	due, err := w.finder.FindDue(ctx, now, w.batchSize)
	if err != nil {
		return fmt.Errorf("find due followups: %w", err)
	}
	stats.Found = len(due)
	if len(due) == 0 {
		return nil
	}

	var errs []error
	for _, d := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if w.publisher != nil {
			job := queue.DispatchJob{FollowupID: d.Followup.ID, EnqueuedAt: now, SweepRunID: stats.RunID}
			if err := w.publisher.Publish(ctx, job); err != nil {
				errs = append(errs, err)
				continue
			}
			stats.Published++
			continue
		}

		outcome, err := w.processor.Process(ctx, d.Followup.ID)
		switch outcome {
		case followup.OutcomeSent:
			stats.Sent++
			atomic.AddInt64(&w.sent, 1)
		case followup.OutcomeCancelled:
			stats.Cancelled++
		case followup.OutcomeFailed:
			stats.Failed++
			atomic.AddInt64(&w.failed, 1)
		default:
			stats.Skipped++
		}
		if err != nil {
			log.Printf("[FollowupDispatch] followup %s: %v", d.Followup.ID, err)
			if !errors.Is(err, followup.ErrTransportFailure) {
				errs = append(errs, err)
			}
		}
	}

	log.Printf("[FollowupDispatch] run=%s found=%d sent=%d cancelled=%d skipped=%d failed=%d published=%d",
		stats.RunID, stats.Found, stats.Sent, stats.Cancelled, stats.Skipped, stats.Failed, stats.Published)
	return errors.Join(errs...)
}
