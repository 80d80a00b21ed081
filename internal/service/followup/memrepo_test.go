package followup_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/service/followup"
	"github.com/contact-app/followup/internal/settings"
)

// memRepo is an in-memory followup repository for unit testing. It enforces
// the one-scheduled-per-key rule the way the partial unique index does.
type memRepo struct {
	mu        sync.Mutex
	followups map[string]*domain.Followup // keyed by id
	companies map[string]domain.Company
	documents map[string]domain.Document
	creates   int

	markSentErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		followups: make(map[string]*domain.Followup),
		companies: make(map[string]domain.Company),
		documents: make(map[string]domain.Document),
	}
}

func (m *memRepo) addCompany(c domain.Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
}

func (m *memRepo) addDocument(d domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = d
}

func (m *memRepo) put(f domain.Followup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followups[f.ID] = &f
}

func (m *memRepo) snapshot(id string) domain.Followup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.followups[id]
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.followups)
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Followup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.followups[id]
	if !ok {
		return nil, followup.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memRepo) FindActive(_ context.Context, key domain.FollowupKey) (*domain.Followup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.followups {
		if f.Status == domain.FollowupScheduled && f.Key() == key {
			cp := *f
			return &cp, nil
		}
	}
	return nil, followup.ErrNotFound
}

func (m *memRepo) CreateScheduled(_ context.Context, f *domain.Followup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == "" {
		return fmt.Errorf("id required")
	}
	for _, existing := range m.followups {
		if existing.Status == domain.FollowupScheduled && existing.Key() == f.Key() {
			return followup.ErrRaceLost
		}
	}
	cp := *f
	m.followups[cp.ID] = &cp
	m.creates++
	return nil
}

func (m *memRepo) due(f *domain.Followup) (*domain.DueFollowup, bool) {
	c, ok := m.companies[f.CompanyID]
	if !ok || c.IsDeleted() {
		return nil, false
	}
	d, ok := m.documents[f.DocumentID]
	if !ok || d.IsDeleted() {
		return nil, false
	}
	return &domain.DueFollowup{Followup: *f, Company: c, Document: d}, true
}

func (m *memRepo) FindDue(_ context.Context, now time.Time, limit int) ([]domain.DueFollowup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DueFollowup
	for _, f := range m.followups {
		if !f.IsDue(now) {
			continue
		}
		if d, ok := m.due(f); ok {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Followup.ScheduledFor.Before(out[j].Followup.ScheduledFor)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) GetDue(_ context.Context, id string) (*domain.DueFollowup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.followups[id]
	if !ok {
		return nil, followup.ErrNotFound
	}
	d, ok := m.due(f)
	if !ok {
		return nil, followup.ErrNotFound
	}
	return d, nil
}

func (m *memRepo) transition(id string, apply func(f *domain.Followup) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.followups[id]
	if !ok {
		return followup.ErrNotFound
	}
	return apply(f)
}

func (m *memRepo) Cancel(_ context.Context, id string, reason domain.CancellationReason, now time.Time) error {
	return m.transition(id, func(f *domain.Followup) error { return f.Cancel(reason, now) })
}

func (m *memRepo) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	m.mu.Lock()
	err := m.markSentErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.transition(id, func(f *domain.Followup) error { return f.MarkSent(sentAt) })
}

func (m *memRepo) MarkFailed(_ context.Context, id string, message string, now time.Time) error {
	return m.transition(id, func(f *domain.Followup) error { return f.MarkFailed(message, now) })
}

func (m *memRepo) CancelScheduledForCompany(_ context.Context, companyID string, reason domain.CancellationReason, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.followups {
		if f.CompanyID == companyID && f.Status == domain.FollowupScheduled {
			if err := f.Cancel(reason, now); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func matches(f *domain.Followup, cutoff time.Time, statuses []domain.FollowupStatus) bool {
	if !f.UpdatedAt.Before(cutoff) {
		return false
	}
	for _, s := range statuses {
		if f.Status == s {
			return true
		}
	}
	return false
}

func (m *memRepo) CountTerminalOlderThan(_ context.Context, cutoff time.Time, statuses []domain.FollowupStatus) (map[domain.FollowupStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.FollowupStatus]int)
	for _, f := range m.followups {
		if matches(f, cutoff, statuses) {
			out[f.Status]++
		}
	}
	return out, nil
}

func (m *memRepo) ListTerminalOlderThan(_ context.Context, cutoff time.Time, statuses []domain.FollowupStatus, limit int) ([]domain.Followup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Followup
	for _, f := range m.followups {
		if matches(f, cutoff, statuses) {
			out = append(out, *f)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time, statuses []domain.FollowupStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, f := range m.followups {
		if matches(f, cutoff, statuses) {
			delete(m.followups, id)
			n++
		}
	}
	return n, nil
}

// staticSettings serves a fixed followup configuration.
type staticSettings struct {
	cfg settings.Followup
	err error
}

func (s *staticSettings) FollowupSettings(context.Context) (settings.Followup, error) {
	return s.cfg, s.err
}

func enabledSettings(delayMinutes int) *staticSettings {
	return &staticSettings{cfg: settings.Followup{
		Enabled:         true,
		DelayMinutes:    delayMinutes,
		SubjectTemplate: "About {{ document.title }}",
		BodyTemplate:    "<p>Hi {{ company.contact_name }}, book at {{ booking_url }}</p>",
		BookingURL:      "https://timerex.net/s/acme",
	}}
}

// memBookings is an in-memory BookingSource.
type memBookings struct {
	mu       sync.Mutex
	bookings []domain.Booking
	err      error
}

func (b *memBookings) add(bk domain.Booking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookings = append(b.bookings, bk)
}

func (b *memBookings) BookingsSince(_ context.Context, companyID string, since time.Time) ([]domain.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var out []domain.Booking
	for _, bk := range b.bookings {
		if bk.CompanyID == companyID && !bk.BookedAt.Before(since) {
			out = append(out, bk)
		}
	}
	return out, nil
}
