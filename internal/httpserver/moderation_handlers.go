package httpserver

import (
	"net/http"

	"clubhouse/internal/service"
)

func (h *handlers) blockedUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Moderation.Blocked(r.Context(), CurrentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_users": list})
}

func (h *handlers) block(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	b, err := h.Moderation.Block(r.Context(), CurrentUser(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handlers) unblock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.Moderation.Unblock(r.Context(), CurrentUser(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req service.ReportInput
	if !decodeJSON(w, r, &req) {
		return
	}
	rep, err := h.Moderation.Report(r.Context(), CurrentUser(r), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (h *handlers) reportsDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Moderation.Reports(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *handlers) markReportReviewed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reportID")
	if !ok {
		return
	}
	if err := h.Moderation.MarkReviewed(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
