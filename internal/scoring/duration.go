package scoring

import (
	"fmt"
	"strings"
)

const (
	// MaxViewSeconds caps a single view at one day.
	MaxViewSeconds = 86400

	DefaultValidSeconds = 5
	DefaultShortSeconds = 30
	DefaultLongSeconds  = 300
)

// EngagementLevel is the tier of a single view.
type EngagementLevel string

const (
	EngagementHigh    EngagementLevel = "high"
	EngagementMedium  EngagementLevel = "medium"
	EngagementLow     EngagementLevel = "low"
	EngagementInvalid EngagementLevel = "invalid"
)

// DurationThresholds configures the view tiers in seconds:
// invalid < Valid <= low < Short <= medium < Long <= long.
type DurationThresholds struct {
	Valid int `yaml:"valid_seconds" json:"valid_seconds"`
	Short int `yaml:"short_seconds" json:"short_seconds"`
	Long  int `yaml:"long_seconds" json:"long_seconds"`
}

// DefaultDurationThresholds returns 5s / 30s / 300s.
func DefaultDurationThresholds() DurationThresholds {
	return DurationThresholds{
		Valid: DefaultValidSeconds,
		Short: DefaultShortSeconds,
		Long:  DefaultLongSeconds,
	}
}

// TimeTier awards Score to views lasting at least MinDuration seconds.
type TimeTier struct {
	MinDuration int     `yaml:"min_duration" json:"min_duration"`
	Score       float64 `yaml:"score" json:"score"`
}

// ViewDuration is the elapsed time of one page view.
type ViewDuration struct {
	seconds    int
	thresholds DurationThresholds
}

// NewViewDuration validates seconds in [0, 86400] using default thresholds.
func NewViewDuration(seconds int) (ViewDuration, error) {
	return NewViewDurationWithThresholds(seconds, DefaultDurationThresholds())
}

// NewViewDurationWithThresholds is NewViewDuration with custom tier bounds.
func NewViewDurationWithThresholds(seconds int, t DurationThresholds) (ViewDuration, error) {
	if seconds < 0 || seconds > MaxViewSeconds {
		return ViewDuration{}, fmt.Errorf("%w: duration %ds outside [0,%d]", ErrInvalidInput, seconds, MaxViewSeconds)
	}
	if t.Valid < 0 || t.Short < t.Valid || t.Long < t.Short {
		return ViewDuration{}, fmt.Errorf("%w: thresholds must satisfy 0 <= valid <= short <= long (got %d/%d/%d)",
			ErrInvalidInput, t.Valid, t.Short, t.Long)
	}
	return ViewDuration{seconds: seconds, thresholds: t}, nil
}

func (d ViewDuration) Seconds() int { return d.seconds }

func (d ViewDuration) Minutes() float64 { return float64(d.seconds) / 60 }

func (d ViewDuration) Hours() float64 { return float64(d.seconds) / 3600 }

// IsValid reports whether the view lasted long enough to count at all.
func (d ViewDuration) IsValid() bool { return d.seconds >= d.thresholds.Valid }

func (d ViewDuration) IsShort() bool { return d.seconds < d.thresholds.Short }

func (d ViewDuration) IsMedium() bool {
	return d.seconds >= d.thresholds.Short && d.seconds < d.thresholds.Long
}

func (d ViewDuration) IsLong() bool { return d.seconds >= d.thresholds.Long }

// EngagementLevel maps the duration onto high/medium/low/invalid.
func (d ViewDuration) EngagementLevel() EngagementLevel {
	switch {
	case d.IsLong():
		return EngagementHigh
	case d.IsMedium():
		return EngagementMedium
	case d.IsValid():
		return EngagementLow
	default:
		return EngagementInvalid
	}
}

// CalculateTimeScore returns the highest Score among tiers whose MinDuration
// is reached. Tier order does not matter.
func (d ViewDuration) CalculateTimeScore(tiers []TimeTier) float64 {
	best := 0.0
	matched := false
	for _, t := range tiers {
		if t.MinDuration > d.seconds {
			continue
		}
		if !matched || t.Score > best {
			best = t.Score
			matched = true
		}
	}
	return best
}

// Format renders "45s", "2m", "2m5s", "1h", "1h30m".
func (d ViewDuration) Format() string {
	s := d.seconds
	switch {
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		var b strings.Builder
		fmt.Fprintf(&b, "%dm", s/60)
		if rem := s % 60; rem > 0 {
			fmt.Fprintf(&b, "%ds", rem)
		}
		return b.String()
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%dh", s/3600)
		if rem := (s % 3600) / 60; rem > 0 {
			fmt.Fprintf(&b, "%dm", rem)
		}
		return b.String()
	}
}

func (d ViewDuration) String() string { return d.Format() }
