package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/pkg/httputil"
	"github.com/contact-app/followup/internal/pkg/logger"
	"github.com/contact-app/followup/internal/service/followup"
)

var viewerLog = logger.New("viewer-api")

func viewerKey(r *http.Request) domain.FollowupKey {
	return domain.FollowupKey{
		CompanyID:  chi.URLParam(r, "companyID"),
		DocumentID: chi.URLParam(r, "documentID"),
		ViewerIP:   viewerIP(r),
	}
}

type timerResponse struct {
	Scheduled bool             `json:"scheduled"`
	Followup  *domain.Followup `json:"followup,omitempty"`
}

// StartTimer handles POST /api/viewer/{companyID}/{documentID}/timer/start.
// Calling it again while a followup is pending returns the pending one.
func (h *Handlers) StartTimer(w http.ResponseWriter, r *http.Request) {
	f, err := h.timers.StartTimer(r.Context(), viewerKey(r), h.now().UTC())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, timerResponse{Scheduled: true, Followup: f})
}

type stopTimerRequest struct {
	Reason domain.CancellationReason `json:"reason"`
}

// StopTimer handles POST /api/viewer/{companyID}/{documentID}/timer/stop.
// Stopping with nothing pending is a no-op. An empty reason means the
// viewer dismissed the followup.
func (h *Handlers) StopTimer(w http.ResponseWriter, r *http.Request) {
	req := stopTimerRequest{}
	if r.ContentLength != 0 {
		if !httputil.Decode(w, r, &req) {
			return
		}
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonUserDismissed
	}
	if err := h.timers.StopTimer(r.Context(), viewerKey(r), req.Reason, h.now().UTC()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"stopped": true, "reason": req.Reason})
}

type viewRequest struct {
	Page    int `json:"page"`
	Seconds int `json:"seconds"`
}

type eventResponse struct {
	Recorded  bool             `json:"recorded"`
	Qualifies bool             `json:"qualifies"`
	Followup  *domain.Followup `json:"followup,omitempty"`
}

// RecordView handles POST /api/viewer/{companyID}/{documentID}/views. A view
// long enough to count starts the followup timer.
func (h *Handlers) RecordView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	key := viewerKey(r)
	now := h.now().UTC()

	qualifies, err := h.engagement.RecordView(r.Context(), domain.PageView{
		CompanyID:       key.CompanyID,
		DocumentID:      key.DocumentID,
		ViewerIP:        key.ViewerIP,
		Page:            req.Page,
		DurationSeconds: req.Seconds,
		CreatedAt:       now,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := eventResponse{Recorded: true, Qualifies: qualifies}
	if qualifies {
		f, err := h.startAfterEvent(r, key)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp.Followup = f
	}
	httputil.Created(w, resp)
}

type feedbackRequest struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// RecordFeedback handles POST /api/viewer/{companyID}/{documentID}/feedback.
// Any feedback starts the followup timer.
func (h *Handlers) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	key := viewerKey(r)

	err := h.engagement.RecordFeedback(r.Context(), domain.Feedback{
		CompanyID:  key.CompanyID,
		DocumentID: key.DocumentID,
		ViewerIP:   key.ViewerIP,
		Score:      req.Score,
		Comment:    req.Comment,
		CreatedAt:  h.now().UTC(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	f, err := h.startAfterEvent(r, key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.Created(w, eventResponse{Recorded: true, Qualifies: true, Followup: f})
}

// startAfterEvent starts the timer after a qualifying event. A disabled
// followup feature is not an error for the event itself.
func (h *Handlers) startAfterEvent(r *http.Request, key domain.FollowupKey) (*domain.Followup, error) {
	f, err := h.timers.StartTimer(r.Context(), key, h.now().UTC())
	if errors.Is(err, followup.ErrFollowupDisabled) {
		return nil, nil
	}
	if err != nil {
		viewerLog.Warn("start timer after event failed", "company_id", key.CompanyID, "document_id", key.DocumentID, "ip", key.ViewerIP, "error", err)
		return nil, err
	}
	return f, nil
}
