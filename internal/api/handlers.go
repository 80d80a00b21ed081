// Package api is the HTTP surface of the followup engine: viewer events from
// the document viewer, score and settings reads, operator triggers for
// dispatch and cleanup, and the TimeRex webhook mount.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/scoring"
	"github.com/contact-app/followup/internal/service/followup"
	"github.com/contact-app/followup/internal/settings"
	"github.com/contact-app/followup/internal/worker"
)

// TimerService starts and stops followup timers.
type TimerService interface {
	StartTimer(ctx context.Context, key domain.FollowupKey, now time.Time) (*domain.Followup, error)
	StopTimer(ctx context.Context, key domain.FollowupKey, reason domain.CancellationReason, now time.Time) error
}

// EngagementService records viewer events and computes scores.
type EngagementService interface {
	RecordView(ctx context.Context, v domain.PageView) (bool, error)
	RecordFeedback(ctx context.Context, f domain.Feedback) error
	CompanyScore(ctx context.Context, companyID string) (scoring.Score, error)
	DocumentScore(ctx context.Context, documentID string) (scoring.Score, error)
}

// SettingsService reads and writes the followup configuration.
type SettingsService interface {
	FollowupSettings(ctx context.Context) (settings.Followup, error)
	SetFollowupSettings(ctx context.Context, f settings.Followup) error
}

// DispatchRunner runs one dispatch sweep on demand.
type DispatchRunner interface {
	RunOnce(ctx context.Context) (worker.DispatchStats, error)
}

// CleanupRunner previews and runs retention sweeps.
type CleanupRunner interface {
	Run(ctx context.Context, opts followup.SweepOptions, now time.Time) (followup.SweepResult, error)
}

// Deps wires the handlers. Dispatch and Cleanup may be nil, in which case
// the operator endpoints answer 503.
type Deps struct {
	Timers     TimerService
	Engagement EngagementService
	Settings   SettingsService
	Dispatch   DispatchRunner
	Cleanup    CleanupRunner
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	timers     TimerService
	engagement EngagementService
	settings   SettingsService
	dispatch   DispatchRunner
	cleanup    CleanupRunner
	now        func() time.Time
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		timers:     d.Timers,
		engagement: d.Engagement,
		settings:   d.Settings,
		dispatch:   d.Dispatch,
		cleanup:    d.Cleanup,
		now:        time.Now,
	}
}

// viewerIP prefers the first X-Forwarded-For hop, then X-Real-Ip, then the
// connection address.
func viewerIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
