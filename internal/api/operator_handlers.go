package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contact-app/followup/internal/pkg/httputil"
	"github.com/contact-app/followup/internal/service/followup"
	"github.com/contact-app/followup/internal/settings"
)

// GetCompanyScore handles GET /api/companies/{companyID}/score.
func (h *Handlers) GetCompanyScore(w http.ResponseWriter, r *http.Request) {
	s, err := h.engagement.CompanyScore(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, s.Summary())
}

// GetDocumentScore handles GET /api/documents/{documentID}/score.
func (h *Handlers) GetDocumentScore(w http.ResponseWriter, r *http.Request) {
	s, err := h.engagement.DocumentScore(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, s.Summary())
}

// GetFollowupSettings handles GET /api/settings/followup.
func (h *Handlers) GetFollowupSettings(w http.ResponseWriter, r *http.Request) {
	f, err := h.settings.FollowupSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, f)
}

// UpdateFollowupSettings handles PUT /api/settings/followup.
func (h *Handlers) UpdateFollowupSettings(w http.ResponseWriter, r *http.Request) {
	var f settings.Followup
	if !httputil.Decode(w, r, &f) {
		return
	}
	if err := h.settings.SetFollowupSettings(r.Context(), f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, f)
}

// TriggerDispatch handles POST /api/followups/dispatch.
func (h *Handlers) TriggerDispatch(w http.ResponseWriter, r *http.Request) {
	if h.dispatch == nil {
		httputil.Fail(w, r, http.StatusServiceUnavailable, httputil.CodeUnavailable, "dispatch is not configured")
		return
	}
	stats, err := h.dispatch.RunOnce(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, stats)
}

type cleanupRequest struct {
	Days    int  `json:"days"`
	DryRun  bool `json:"dry_run"`
	Confirm bool `json:"confirm"`
}

// TriggerCleanup handles POST /api/followups/cleanup. A real deletion
// requires confirm=true.
func (h *Handlers) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	if h.cleanup == nil {
		httputil.Fail(w, r, http.StatusServiceUnavailable, httputil.CodeUnavailable, "cleanup is not configured")
		return
	}
	req := cleanupRequest{Days: followup.DefaultRetentionDays, DryRun: true}
	if r.ContentLength != 0 {
		if !httputil.Decode(w, r, &req) {
			return
		}
	}
	if !req.DryRun && !req.Confirm {
		httputil.Fail(w, r, http.StatusBadRequest, "confirmation_required", "set confirm=true to delete followups")
		return
	}

	res, err := h.cleanup.Run(r.Context(), followup.SweepOptions{Days: req.Days, DryRun: req.DryRun}, h.now().UTC())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, res)
}
