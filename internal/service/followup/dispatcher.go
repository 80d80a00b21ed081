package followup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/mail"
	"github.com/contact-app/followup/internal/pkg/logger"
	"github.com/contact-app/followup/internal/scoring"
)

// Outcome is what Process did with one record.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

const DefaultSendTimeout = 30 * time.Second

// BookingChecker is the booking gate consulted before every send.
type BookingChecker interface {
	CheckAndCancelSince(ctx context.Context, companyID string, triggeredAt time.Time) (BookingCheck, error)
}

// Renderer turns templates plus context into a message.
type Renderer interface {
	RenderFollowup(t mail.Templates, fc mail.FollowupContext) (*mail.Message, error)
}

// ScoreSource supplies the engagement score exposed to templates.
type ScoreSource interface {
	CompanyScore(ctx context.Context, companyID string) (scoring.Score, error)
}

// Dispatcher delivers one due followup at a time. It is stateless between
// calls; the record status decides whether anything happens.
type Dispatcher struct {
	repo        Repository
	bookings    BookingChecker
	settings    SettingsSource
	renderer    Renderer
	transport   mail.Transport
	scores      ScoreSource
	sendTimeout time.Duration
	now         func() time.Time
	log         *logger.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout bounds each transport call.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) { x.sendTimeout = d }
}

// WithScoreSource exposes the company score to templates as score.*.
func WithScoreSource(s ScoreSource) DispatcherOption {
	return func(x *Dispatcher) { x.scores = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DispatcherOption {
	return func(x *Dispatcher) { x.now = now }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(repo Repository, bookings BookingChecker, src SettingsSource, renderer Renderer, transport mail.Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		repo:        repo,
		bookings:    bookings,
		settings:    src,
		renderer:    renderer,
		transport:   transport,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
		log:         logger.New("followup-dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process sends the followup with the given id if it is still scheduled and
// the company has not booked a meeting. Only a send failure yields an error;
// it wraps ErrTransportFailure and the record is left failed.
func (d *Dispatcher) Process(ctx context.Context, id string) (Outcome, error) {
	f, err := d.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[followup.Dispatcher] %s no longer exists, skipping", id)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("get followup %s: %w", id, err)
	}
	if f.Status != domain.FollowupScheduled {
		return OutcomeSkipped, nil
	}

	check, err := d.bookings.CheckAndCancelSince(ctx, f.CompanyID, f.TriggeredAt)
	if err != nil {
		return d.fail(ctx, f, fmt.Errorf("booking check: %w", err))
	}
	if check.HasRecentBooking {
		d.log.Info("followup cancelled by booking", "followup_id", f.ID, "company_id", f.CompanyID)
		return OutcomeCancelled, nil
	}

	due, err := d.repo.GetDue(ctx, id)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[followup.Dispatcher] %s: company or document gone, skipping", id)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load due followup %s: %w", id, err)
	}

	msg, err := d.render(ctx, due)
	if err != nil {
		return d.fail(ctx, f, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	res, err := d.transport.Send(sendCtx, msg)
	cancel()
	if err != nil {
		return d.fail(ctx, f, fmt.Errorf("send: %w", err))
	}

	if err := d.repo.MarkSent(ctx, f.ID, d.now()); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			d.log.Warn("followup changed state during send", "followup_id", f.ID, "message_id", res.MessageID)
			return OutcomeSkipped, nil
		}
		// The email is out; redelivering the job would send it again.
		d.log.Error("followup sent but not recorded", "followup_id", f.ID, "message_id", res.MessageID, "error", err.Error())
		return OutcomeSent, nil
	}

	d.log.Info("followup sent",
		"followup_id", f.ID,
		"company_id", f.CompanyID,
		"to", msg.To,
		"message_id", res.MessageID,
		"transport", res.Transport,
	)
	return OutcomeSent, nil
}

func (d *Dispatcher) render(ctx context.Context, due *domain.DueFollowup) (*mail.Message, error) {
	cfg, err := d.settings.FollowupSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load followup settings: %w", err)
	}

	fc := mail.FollowupContext{
		Company:    due.Company,
		Document:   due.Document,
		Followup:   due.Followup,
		BookingURL: cfg.BookingURL,
	}
	if d.scores != nil {
		score, err := d.scores.CompanyScore(ctx, due.Company.ID)
		if err != nil {
			log.Printf("[followup.Dispatcher] score for company %s unavailable: %v", due.Company.ID, err)
		} else {
			fc.Score = score.ToMap()
		}
	}

	msg, err := d.renderer.RenderFollowup(mail.Templates{Subject: cfg.SubjectTemplate, Body: cfg.BodyTemplate}, fc)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return msg, nil
}

// fail records cause on the record and returns it wrapped in
// ErrTransportFailure.
func (d *Dispatcher) fail(ctx context.Context, f *domain.Followup, cause error) (Outcome, error) {
	if err := d.repo.MarkFailed(ctx, f.ID, cause.Error(), d.now()); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			d.log.Warn("followup changed state before failure was recorded", "followup_id", f.ID, "error", cause.Error())
			return OutcomeSkipped, nil
		}
		log.Printf("[followup.Dispatcher] mark %s failed: %v", f.ID, err)
	}
	d.log.Error("followup failed", "followup_id", f.ID, "company_id", f.CompanyID, "error", cause.Error())
	return OutcomeFailed, fmt.Errorf("%w: followup %s: %v", ErrTransportFailure, f.ID, cause)
}
