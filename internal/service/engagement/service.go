// Package engagement turns recorded page views and survey feedback into a
// scoring.Score per company or document.
package engagement

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/scoring"
)

// Weights control how the survey and engagement parts combine into the
// total. Only the parts that are present take part in the mean.
type Weights struct {
	Survey     float64 `yaml:"survey" json:"survey"`
	Engagement float64 `yaml:"engagement" json:"engagement"`
}

// Config tunes the scorer.
type Config struct {
	Weights    Weights                    `yaml:"weights"`
	Tiers      []scoring.TimeTier         `yaml:"tiers"`
	Thresholds scoring.DurationThresholds `yaml:"thresholds"`
}

// DefaultConfig weighs both parts equally.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{Survey: 0.5, Engagement: 0.5},
		Tiers: []scoring.TimeTier{
			{MinDuration: 5, Score: 20},
			{MinDuration: 30, Score: 50},
			{MinDuration: 120, Score: 80},
			{MinDuration: 300, Score: 100},
		},
		Thresholds: scoring.DefaultDurationThresholds(),
	}
}

// Service computes engagement scores and records viewer events.
type Service struct {
	repo Repository
	cfg  Config
}

// NewService creates an engagement service. Zero-valued parts of cfg take
// their defaults.
func NewService(repo Repository, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Weights.Survey <= 0 && cfg.Weights.Engagement <= 0 {
		cfg.Weights = def.Weights
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = def.Tiers
	}
	if cfg.Thresholds == (scoring.DurationThresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	return &Service{repo: repo, cfg: cfg}
}

// CompanyScore scores every view and feedback left for the company.
func (s *Service) CompanyScore(ctx context.Context, companyID string) (scoring.Score, error) {
	c, err := s.repo.CompanyCounters(ctx, companyID)
	if err != nil {
		return scoring.Score{}, fmt.Errorf("company counters %s: %w", companyID, err)
	}
	return s.Compute(c)
}

// DocumentScore scores every view and feedback left on the document.
func (s *Service) DocumentScore(ctx context.Context, documentID string) (scoring.Score, error) {
	c, err := s.repo.DocumentCounters(ctx, documentID)
	if err != nil {
		return scoring.Score{}, fmt.Errorf("document counters %s: %w", documentID, err)
	}
	return s.Compute(c)
}

// Compute builds a score from raw counters. Views outside the valid
// duration range do not count towards the engagement part.
func (s *Service) Compute(c domain.EngagementCounters) (scoring.Score, error) {
	opts := []scoring.ScoreOption{
		scoring.WithFeedbackCount(c.FeedbackCount),
		scoring.WithViewCount(c.ViewCount),
	}

	var sum, weights float64

	if c.AverageSurveyScore != nil {
		survey := scoring.Clamp(*c.AverageSurveyScore)
		opts = append(opts, scoring.WithSurveyScore(survey))
		sum += survey * s.cfg.Weights.Survey
		weights += s.cfg.Weights.Survey
	}

	if eng, ok := s.engagementScore(c.ViewDurations); ok {
		opts = append(opts, scoring.WithEngagementScore(eng))
		sum += eng * s.cfg.Weights.Engagement
		weights += s.cfg.Weights.Engagement
	}

	total := 0.0
	if weights > 0 {
		total = scoring.Clamp(sum / weights)
	}
	return scoring.NewScore(total, opts...)
}

func (s *Service) engagementScore(durations []int) (float64, bool) {
	var sum float64
	n := 0
	for _, sec := range durations {
		d, err := scoring.NewViewDurationWithThresholds(sec, s.cfg.Thresholds)
		if err != nil || !d.IsValid() {
			continue
		}
		sum += d.CalculateTimeScore(s.cfg.Tiers)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return scoring.Clamp(sum / float64(n)), true
}

// RecordView stores a page view and reports whether it qualifies the viewer
// for a followup.
func (s *Service) RecordView(ctx context.Context, v domain.PageView) (bool, error) {
	d, err := scoring.NewViewDurationWithThresholds(v.DurationSeconds, s.cfg.Thresholds)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if v.Page < 1 {
		return false, fmt.Errorf("%w: page must be at least 1", ErrInvalidEvent)
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if err := s.repo.InsertPageView(ctx, &v); err != nil {
		return false, fmt.Errorf("insert page view: %w", err)
	}
	return d.IsValid(), nil
}

// RecordFeedback stores a survey answer. Any feedback qualifies the viewer
// for a followup.
func (s *Service) RecordFeedback(ctx context.Context, f domain.Feedback) error {
	if math.IsNaN(f.Score) || f.Score < scoring.MinScore || f.Score > scoring.MaxScore {
		return fmt.Errorf("%w: score must be between 0 and 100, got %v", ErrInvalidEvent, f.Score)
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	if err := s.repo.InsertFeedback(ctx, &f); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
