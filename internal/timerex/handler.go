package timerex

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/pkg/httputil"
	"github.com/contact-app/followup/internal/pkg/logger"
	"github.com/contact-app/followup/internal/service/followup"
)

// BookingStore persists bookings idempotently by external id.
type BookingStore interface {
	Save(ctx context.Context, b *domain.Booking) (bool, error)
}

// ConflictResolver cancels followups for a company that has booked.
type ConflictResolver interface {
	CheckAndCancelForTimeRexBooking(ctx context.Context, companyID string) (followup.BookingCheck, error)
}

// Handler serves the TimeRex webhook.
type Handler struct {
	store    BookingStore
	resolver ConflictResolver
	token    string
	verify   bool
	log      *logger.Logger
}

// NewHandler creates the webhook handler. When verify is false (any
// non-production environment) the shared-secret header is not checked.
func NewHandler(store BookingStore, resolver ConflictResolver, token string, verify bool) *Handler {
	return &Handler{
		store:    store,
		resolver: resolver,
		token:    token,
		verify:   verify,
		log:      logger.New("timerex-webhook"),
	}
}

// Routes mounts POST / for the webhook.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleWebhook)
	return r
}

func (h *Handler) authorized(r *http.Request) bool {
	if !h.verify {
		return true
	}
	if h.token == "" {
		return false
	}
	got := r.Header.Get(AuthHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

// HandleWebhook records a confirmed booking and cancels the company's
// pending followups. Other webhook types are acknowledged and ignored.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.log.Warn("webhook rejected", "ip", r.RemoteAddr)
		httputil.Fail(w, r, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid webhook token")
		return
	}

	var p WebhookPayload
	if !httputil.Decode(w, r, &p) {
		return
	}
	if p.WebhookType != WebhookEventConfirmed {
		httputil.OK(w, map[string]string{"status": "ignored", "webhook_type": p.WebhookType})
		return
	}

	b, err := p.Event.Booking(time.Now().UTC())
	if err != nil {
		httputil.Fail(w, r, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	inserted, err := h.store.Save(r.Context(), b)
	if err != nil {
		httputil.Internal(w, r, err)
		return
	}

	check, err := h.resolver.CheckAndCancelForTimeRexBooking(r.Context(), b.CompanyID)
	if err != nil {
		httputil.Internal(w, r, err)
		return
	}

	h.log.Info("booking received",
		"external_id", b.ExternalID,
		"company_id", b.CompanyID,
		"guest_email", b.GuestEmail,
		"duplicate", !inserted,
		"cancelled", check.Cancelled,
	)
	httputil.OK(w, map[string]interface{}{
		"status":    "ok",
		"duplicate": !inserted,
		"cancelled": check.Cancelled,
	})
}
