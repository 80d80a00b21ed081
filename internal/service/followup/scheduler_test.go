package followup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/service/followup"
)

var viewerKey = domain.FollowupKey{CompanyID: "c-1", DocumentID: "d-1", ViewerIP: "198.51.100.4"}

func TestStartTimer_CreatesScheduledRecord(t *testing.T) {
	repo := newMemRepo()
	s := followup.NewScheduler(repo, enabledSettings(30))
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	f, err := s.StartTimer(context.Background(), viewerKey, now)
	require.NoError(t, err)
	assert.Equal(t, domain.FollowupScheduled, f.Status)
	assert.Equal(t, now, f.TriggeredAt)
	assert.Equal(t, now.Add(30*time.Minute), f.ScheduledFor)
	assert.Equal(t, 1, repo.count())
}

func TestStartTimer_ReturnsExistingUnchanged(t *testing.T) {
	repo := newMemRepo()
	s := followup.NewScheduler(repo, enabledSettings(30))
	now := time.Now()

	first, err := s.StartTimer(context.Background(), viewerKey, now)
	require.NoError(t, err)
	second, err := s.StartTimer(context.Background(), viewerKey, now.Add(10*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ScheduledFor, second.ScheduledFor)
	assert.Equal(t, 1, repo.count())
}

func TestStartTimer_NewRecordAfterTerminal(t *testing.T) {
	repo := newMemRepo()
	s := followup.NewScheduler(repo, enabledSettings(30))
	ctx := context.Background()
	now := time.Now()

	first, err := s.StartTimer(ctx, viewerKey, now)
	require.NoError(t, err)
	require.NoError(t, s.StopTimer(ctx, viewerKey, domain.ReasonUserDismissed, now))

	second, err := s.StartTimer(ctx, viewerKey, now.Add(time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.FollowupCancelled, repo.snapshot(first.ID).Status)
}

func TestStartTimer_ConcurrentCallersShareOneRecord(t *testing.T) {
	repo := newMemRepo()
	s := followup.NewScheduler(repo, enabledSettings(30))
	now := time.Now()

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			f, err := s.StartTimer(context.Background(), viewerKey, now)
			errs[i] = err
			if err == nil {
				ids[i] = f.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, repo.creates)
}

func TestStartTimer_Disabled(t *testing.T) {
	src := enabledSettings(30)
	src.cfg.Enabled = false
	repo := newMemRepo()

	_, err := followup.NewScheduler(repo, src).StartTimer(context.Background(), viewerKey, time.Now())
	assert.ErrorIs(t, err, followup.ErrFollowupDisabled)
	assert.Zero(t, repo.count())
}

func TestStartTimer_SettingsError(t *testing.T) {
	src := &staticSettings{err: errors.New("db down")}
	_, err := followup.NewScheduler(newMemRepo(), src).StartTimer(context.Background(), viewerKey, time.Now())
	assert.Error(t, err)
}

// raceRepo always reports a lost race and never shows a winner.
type raceRepo struct{ *memRepo }

func (raceRepo) CreateScheduled(context.Context, *domain.Followup) error {
	return followup.ErrRaceLost
}

func TestStartTimer_BoundedRetries(t *testing.T) {
	_, err := followup.NewScheduler(raceRepo{newMemRepo()}, enabledSettings(30)).
		StartTimer(context.Background(), viewerKey, time.Now())
	assert.ErrorIs(t, err, followup.ErrRaceLost)
}

func TestStopTimer_CancelsActive(t *testing.T) {
	repo := newMemRepo()
	s := followup.NewScheduler(repo, enabledSettings(30))
	ctx := context.Background()

	f, err := s.StartTimer(ctx, viewerKey, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.StopTimer(ctx, viewerKey, domain.ReasonUserCancelled, time.Now()))

	got := repo.snapshot(f.ID)
	assert.Equal(t, domain.FollowupCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, domain.ReasonUserCancelled, *got.CancellationReason)
}

func TestStopTimer_NoActiveIsNoop(t *testing.T) {
	repo := newMemRepo()
	s := followup.NewScheduler(repo, enabledSettings(30))
	assert.NoError(t, s.StopTimer(context.Background(), viewerKey, domain.ReasonUserDismissed, time.Now()))
	assert.Zero(t, repo.count())
}

func TestStopTimer_InvalidReason(t *testing.T) {
	s := followup.NewScheduler(newMemRepo(), enabledSettings(30))
	err := s.StopTimer(context.Background(), viewerKey, domain.CancellationReason("meh"), time.Now())
	assert.ErrorIs(t, err, followup.ErrInvalidReason)
}

// lateRepo finishes the record between FindActive and Cancel.
type lateRepo struct{ *memRepo }

func (r lateRepo) Cancel(ctx context.Context, id string, reason domain.CancellationReason, now time.Time) error {
	_ = r.memRepo.MarkSent(ctx, id, now)
	return r.memRepo.Cancel(ctx, id, reason, now)
}

func TestStopTimer_TerminalBetweenLookupAndCancel(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	f, err := followup.NewScheduler(repo, enabledSettings(30)).StartTimer(ctx, viewerKey, time.Now())
	require.NoError(t, err)

	s := followup.NewScheduler(lateRepo{repo}, enabledSettings(30))
	assert.NoError(t, s.StopTimer(ctx, viewerKey, domain.ReasonUserDismissed, time.Now()))
	assert.Equal(t, domain.FollowupSent, repo.snapshot(f.ID).Status)
}
