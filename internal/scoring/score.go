// Package scoring holds the pure value models used to grade viewer engagement:
// the bounded quality Score and the per-view ViewDuration.
//
// Nothing in this package performs I/O. Constructors fail fast with
// ErrInvalidInput and never clamp silently; callers that aggregate raw
// counters clamp before constructing.
package scoring

import (
	"fmt"
	"math"
)

// QualityLevel classifies a score value into a coarse bucket.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityAverage   QualityLevel = "average"
	QualityPoor      QualityLevel = "poor"
	QualityVeryPoor  QualityLevel = "very_poor"
)

const (
	MinScore = 0.0
	MaxScore = 100.0

	// HighQualityThreshold is the inclusive lower bound for IsHighQuality.
	HighQualityThreshold = 70.0

	// DefaultPrecision is the number of decimals RoundedValue keeps.
	DefaultPrecision = 1

	scoreEpsilon = 0.001
)

// Score is an immutable engagement score in [0,100] together with the raw
// inputs it was derived from.
type Score struct {
	value           float64
	feedbackCount   int
	viewCount       int
	surveyScore     *float64
	engagementScore *float64
	precision       int
}

// ScoreOption customises a Score at construction time.
type ScoreOption func(*Score)

// WithFeedbackCount sets the number of feedback submissions behind the score.
func WithFeedbackCount(n int) ScoreOption { return func(s *Score) { s.feedbackCount = n } }

// WithViewCount sets the number of page views behind the score.
func WithViewCount(n int) ScoreOption { return func(s *Score) { s.viewCount = n } }

// WithSurveyScore attaches the survey component.
func WithSurveyScore(v float64) ScoreOption {
	return func(s *Score) { s.surveyScore = &v }
}

// WithEngagementScore attaches the time-on-page component.
func WithEngagementScore(v float64) ScoreOption {
	return func(s *Score) { s.engagementScore = &v }
}

// WithPrecision overrides the rounding precision (decimals).
func WithPrecision(p int) ScoreOption { return func(s *Score) { s.precision = p } }

// NewScore validates value and builds a Score.
func NewScore(value float64, opts ...ScoreOption) (Score, error) {
	if math.IsNaN(value) || value < MinScore || value > MaxScore {
		return Score{}, fmt.Errorf("%w: score %v outside [%v,%v]", ErrInvalidInput, value, MinScore, MaxScore)
	}
	s := Score{value: value, precision: DefaultPrecision}
	for _, opt := range opts {
		opt(&s)
	}
	if s.feedbackCount < 0 || s.viewCount < 0 {
		return Score{}, fmt.Errorf("%w: counts must be non-negative (feedback=%d, views=%d)",
			ErrInvalidInput, s.feedbackCount, s.viewCount)
	}
	if s.precision < 0 {
		return Score{}, fmt.Errorf("%w: precision %d", ErrInvalidInput, s.precision)
	}
	return s, nil
}

// Zero returns the empty score used when nothing has been recorded yet.
func Zero() Score {
	return Score{precision: DefaultPrecision}
}

// Value returns the unrounded score.
func (s Score) Value() float64 { return s.value }

func (s Score) FeedbackCount() int { return s.feedbackCount }

func (s Score) ViewCount() int { return s.viewCount }

// SurveyScore returns a copy of the survey component, nil when absent.
func (s Score) SurveyScore() *float64 {
	if s.surveyScore == nil {
		return nil
	}
	v := *s.surveyScore
	return &v
}

// EngagementScore returns a copy of the time-on-page component, nil when absent.
func (s Score) EngagementScore() *float64 {
	if s.engagementScore == nil {
		return nil
	}
	v := *s.engagementScore
	return &v
}

// RoundedValue rounds half away from zero at the configured precision.
func (s Score) RoundedValue() float64 {
	return roundTo(s.value, s.precision)
}

// QualityLevel buckets the raw value. Boundaries are inclusive lower bounds.
func (s Score) QualityLevel() QualityLevel {
	switch {
	case s.value >= 80:
		return QualityExcellent
	case s.value >= 60:
		return QualityGood
	case s.value >= 40:
		return QualityAverage
	case s.value >= 20:
		return QualityPoor
	default:
		return QualityVeryPoor
	}
}

// IsHighQuality reports value >= 70.
func (s Score) IsHighQuality() bool {
	return s.value >= HighQualityThreshold
}

// HasSufficientData reports whether enough activity exists for the score to
// mean anything: one feedback, or three views.
func (s Score) HasSufficientData() bool {
	return s.feedbackCount >= 1 || s.viewCount >= 3
}

// Equal compares values within 0.001.
func (s Score) Equal(other Score) bool {
	return math.Abs(s.value-other.value) < scoreEpsilon
}

// Summary is the canonical flat serialization of a Score.
type Summary struct {
	TotalScore        float64      `json:"total_score"`
	SurveyScore       *float64     `json:"survey_score"`
	EngagementScore   *float64     `json:"engagement_score"`
	FeedbackCount     int          `json:"feedback_count"`
	ViewCount         int          `json:"view_count"`
	QualityLevel      QualityLevel `json:"quality_level"`
	IsHighQuality     bool         `json:"is_high_quality"`
	HasSufficientData bool         `json:"has_sufficient_data"`
}

// Summary flattens every derived field. Component scores are rounded at the
// same precision as the total.
func (s Score) Summary() Summary {
	out := Summary{
		TotalScore:        s.RoundedValue(),
		FeedbackCount:     s.feedbackCount,
		ViewCount:         s.viewCount,
		QualityLevel:      s.QualityLevel(),
		IsHighQuality:     s.IsHighQuality(),
		HasSufficientData: s.HasSufficientData(),
	}
	if s.surveyScore != nil {
		v := roundTo(*s.surveyScore, s.precision)
		out.SurveyScore = &v
	}
	if s.engagementScore != nil {
		v := roundTo(*s.engagementScore, s.precision)
		out.EngagementScore = &v
	}
	return out
}

// ToMap is Summary as a generic map, handy as a template context.
func (s Score) ToMap() map[string]interface{} {
	sum := s.Summary()
	m := map[string]interface{}{
		"total_score":         sum.TotalScore,
		"survey_score":        nil,
		"engagement_score":    nil,
		"feedback_count":      sum.FeedbackCount,
		"view_count":          sum.ViewCount,
		"quality_level":       string(sum.QualityLevel),
		"is_high_quality":     sum.IsHighQuality,
		"has_sufficient_data": sum.HasSufficientData,
	}
	if sum.SurveyScore != nil {
		m["survey_score"] = *sum.SurveyScore
	}
	if sum.EngagementScore != nil {
		m["engagement_score"] = *sum.EngagementScore
	}
	return m
}

func (s Score) String() string {
	return fmt.Sprintf("%.*f (%s)", s.precision, s.RoundedValue(), s.QualityLevel())
}

// Clamp forces v into [0,100]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
