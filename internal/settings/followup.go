package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Keys read by the followup engine.
const (
	KeyFollowupEnabled         = "followup.enabled"
	KeyFollowupDelayMinutes    = "followup.delay_minutes"
	KeyFollowupSubjectTemplate = "followup.subject_template"
	KeyFollowupBodyTemplate    = "followup.body_template"
	KeyFollowupBookingURL      = "followup.booking_url"
)

const (
	MinDelayMinutes = 1
	MaxDelayMinutes = 1440
)

// Followup is the resolved followup configuration.
type Followup struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	DelayMinutes    int    `json:"delay_minutes" yaml:"delay_minutes"`
	SubjectTemplate string `json:"subject_template" yaml:"subject_template"`
	BodyTemplate    string `json:"body_template" yaml:"body_template"`
	BookingURL      string `json:"booking_url" yaml:"booking_url"`
}

// Delay returns the scheduling delay as a duration.
func (f Followup) Delay() time.Duration {
	return time.Duration(f.DelayMinutes) * time.Minute
}

// Validate checks the delay bounds and that both templates are present.
func (f Followup) Validate() error {
	if f.DelayMinutes < MinDelayMinutes || f.DelayMinutes > MaxDelayMinutes {
		return fmt.Errorf("%w: delay_minutes must be between %d and %d, got %d",
			ErrInvalidValue, MinDelayMinutes, MaxDelayMinutes, f.DelayMinutes)
	}
	if f.SubjectTemplate == "" {
		return fmt.Errorf("%w: subject_template is required", ErrInvalidValue)
	}
	if f.BodyTemplate == "" {
		return fmt.Errorf("%w: body_template is required", ErrInvalidValue)
	}
	return nil
}

// FollowupSettings resolves every followup key, falling back to the
// configured defaults for keys that are not set.
func (s *Service) FollowupSettings(ctx context.Context) (Followup, error) {
	out := s.defaults

	if v, ok, err := s.lookup(ctx, KeyFollowupEnabled); err != nil {
		return Followup{}, err
	} else if ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Followup{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyFollowupEnabled, v)
		}
		out.Enabled = b
	}

	if v, ok, err := s.lookup(ctx, KeyFollowupDelayMinutes); err != nil {
		return Followup{}, err
	} else if ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < MinDelayMinutes || n > MaxDelayMinutes {
			return Followup{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyFollowupDelayMinutes, v)
		}
		out.DelayMinutes = n
	}

	for key, dst := range map[string]*string{
		KeyFollowupSubjectTemplate: &out.SubjectTemplate,
		KeyFollowupBodyTemplate:    &out.BodyTemplate,
		KeyFollowupBookingURL:      &out.BookingURL,
	} {
		v, ok, err := s.lookup(ctx, key)
		if err != nil {
			return Followup{}, err
		}
		if ok {
			*dst = v
		}
	}
	return out, nil
}

// SetFollowupSettings validates f and writes every key.
func (s *Service) SetFollowupSettings(ctx context.Context, f Followup) error {
	if err := f.Validate(); err != nil {
		return err
	}
	writes := []struct{ key, value string }{
		{KeyFollowupEnabled, strconv.FormatBool(f.Enabled)},
		{KeyFollowupDelayMinutes, strconv.Itoa(f.DelayMinutes)},
		{KeyFollowupSubjectTemplate, f.SubjectTemplate},
		{KeyFollowupBodyTemplate, f.BodyTemplate},
		{KeyFollowupBookingURL, f.BookingURL},
	}
	for _, w := range writes {
		if err := s.Set(ctx, w.key, w.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
