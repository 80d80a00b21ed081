package followup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/contact-app/followup/internal/domain"
)

const DefaultRetentionDays = 30

// Archiver stores rows before the sweeper deletes them.
type Archiver interface {
	Archive(ctx context.Context, cutoff time.Time, rows []domain.Followup) (string, error)
}

// Preview describes what a sweep would delete.
type Preview struct {
	Days     int                           `json:"days"`
	Cutoff   time.Time                     `json:"cutoff"`
	Total    int                           `json:"total"`
	ByStatus map[domain.FollowupStatus]int `json:"by_status"`
}

// SweepOptions controls one sweep.
type SweepOptions struct {
	Days   int  `json:"days"`
	DryRun bool `json:"dry_run"`
}

// SweepResult reports a finished sweep. Deleted is the number of rows the
// store actually removed, which may differ from Preview.Total.
type SweepResult struct {
	Preview    Preview `json:"preview"`
	DryRun     bool    `json:"dry_run"`
	Archived   int     `json:"archived"`
	ArchiveKey string  `json:"archive_key,omitempty"`
	Deleted    int64   `json:"deleted"`
}

// Sweeper deletes terminal followups older than a retention window.
// Scheduled records are never touched.
type Sweeper struct {
	repo     Repository
	archiver Archiver
}

// NewSweeper creates a sweeper. archiver may be nil.
func NewSweeper(repo Repository, archiver Archiver) *Sweeper {
	return &Sweeper{repo: repo, archiver: archiver}
}

// Preview counts the terminal records per status whose updated_at is more
// than days before now.
func (s *Sweeper) Preview(ctx context.Context, days int, now time.Time) (Preview, error) {
	if days < 1 {
		return Preview{}, fmt.Errorf("%w: got %d", ErrInvalidRetention, days)
	}
	cutoff := now.AddDate(0, 0, -days)

	counts, err := s.repo.CountTerminalOlderThan(ctx, cutoff, domain.TerminalFollowupStatuses)
	if err != nil {
		return Preview{}, fmt.Errorf("count old followups: %w", err)
	}

	p := Preview{Days: days, Cutoff: cutoff, ByStatus: make(map[domain.FollowupStatus]int)}
	for _, st := range domain.TerminalFollowupStatuses {
		p.ByStatus[st] = counts[st]
		p.Total += counts[st]
	}
	return p, nil
}

// Run previews and, unless opts.DryRun, archives then deletes the matching
// records in one bulk statement.
func (s *Sweeper) Run(ctx context.Context, opts SweepOptions, now time.Time) (SweepResult, error) {
	p, err := s.Preview(ctx, opts.Days, now)
	if err != nil {
		return SweepResult{}, err
	}
	res := SweepResult{Preview: p, DryRun: opts.DryRun}
	if opts.DryRun || p.Total == 0 {
		return res, nil
	}

	if s.archiver != nil {
		rows, err := s.repo.ListTerminalOlderThan(ctx, p.Cutoff, domain.TerminalFollowupStatuses, 0)
		if err != nil {
			return res, fmt.Errorf("list old followups: %w", err)
		}
		key, err := s.archiver.Archive(ctx, p.Cutoff, rows)
		if err != nil {
			return res, fmt.Errorf("archive old followups: %w", err)
		}
		res.Archived = len(rows)
		res.ArchiveKey = key
	}

	n, err := s.repo.DeleteTerminalOlderThan(ctx, p.Cutoff, domain.TerminalFollowupStatuses)
	if err != nil {
		return res, fmt.Errorf("delete old followups: %w", err)
	}
	res.Deleted = n
	log.Printf("[followup.Sweeper] deleted %d followup(s) older than %s", n, p.Cutoff.Format(time.RFC3339))
	return res, nil
}
