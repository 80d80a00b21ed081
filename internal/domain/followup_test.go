package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = FollowupKey{CompanyID: "c-1", DocumentID: "d-1", ViewerIP: "203.0.113.7"}

func TestNewFollowup(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f, err := NewFollowup(testKey, now, 15*time.Minute)
	require.NoError(t, err)

	_, err = uuid.Parse(f.ID)
	assert.NoError(t, err, "id should be a uuid")
	assert.Equal(t, FollowupScheduled, f.Status)
	assert.Equal(t, now, f.TriggeredAt)
	assert.Equal(t, now.Add(15*time.Minute), f.ScheduledFor)
	assert.Equal(t, testKey, f.Key())
	assert.Nil(t, f.SentAt)
	assert.Nil(t, f.CancellationReason)

	g, err := NewFollowup(testKey, now, 15*time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, f.ID, g.ID)
}

func TestNewFollowup_Rejects(t *testing.T) {
	now := time.Now()
	_, err := NewFollowup(FollowupKey{CompanyID: "c", DocumentID: "d"}, now, time.Minute)
	assert.Error(t, err)
	_, err = NewFollowup(testKey, now, -time.Second)
	assert.Error(t, err)
}

func TestFollowup_IsDue(t *testing.T) {
	now := time.Now()
	f, _ := NewFollowup(testKey, now, time.Minute)
	assert.False(t, f.IsDue(now))
	assert.True(t, f.IsDue(now.Add(time.Minute)))
	require.NoError(t, f.Cancel(ReasonUserDismissed, now))
	assert.False(t, f.IsDue(now.Add(time.Hour)))
}

func TestFollowup_TerminalStatesAreFinal(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		end  func(f *Followup) error
		want FollowupStatus
	}{
		{"sent", func(f *Followup) error { return f.MarkSent(now) }, FollowupSent},
		{"cancelled", func(f *Followup) error { return f.Cancel(ReasonTimeRexBooked, now) }, FollowupCancelled},
		{"failed", func(f *Followup) error { return f.MarkFailed("smtp 421", now) }, FollowupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := NewFollowup(testKey, now, time.Minute)
			require.NoError(t, tt.end(f))
			assert.Equal(t, tt.want, f.Status)
			assert.True(t, f.IsTerminal())

			assert.ErrorIs(t, f.MarkSent(now), ErrInvalidTransition)
			assert.ErrorIs(t, f.MarkFailed("x", now), ErrInvalidTransition)
			assert.ErrorIs(t, f.Cancel(ReasonUserCancelled, now), ErrInvalidTransition)
			assert.Equal(t, tt.want, f.Status)
		})
	}
}

func TestFollowup_CancelRecordsReason(t *testing.T) {
	now := time.Now()
	f, _ := NewFollowup(testKey, now, time.Minute)
	require.NoError(t, f.Cancel(ReasonTimerReset, now))
	require.NotNil(t, f.CancellationReason)
	assert.Equal(t, ReasonTimerReset, *f.CancellationReason)
}

func TestFollowup_CancelRejectsUnknownReason(t *testing.T) {
	f, _ := NewFollowup(testKey, time.Now(), time.Minute)
	assert.Error(t, f.Cancel(CancellationReason("bored"), time.Now()))
	assert.Equal(t, FollowupScheduled, f.Status)
}

func TestFollowupStatus_Valid(t *testing.T) {
	for _, s := range []FollowupStatus{FollowupScheduled, FollowupSent, FollowupCancelled, FollowupFailed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, FollowupStatus("paused").Valid())
	assert.False(t, FollowupScheduled.IsTerminal())
}
