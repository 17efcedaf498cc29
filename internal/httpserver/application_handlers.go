package httpserver

import (
	"net/http"

	"clubhouse/internal/service"
)

func (h *handlers) apply(w http.ResponseWriter, r *http.Request) {
	var req service.ApplyInput
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.Applications.Apply(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

type reviewRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) applicationsDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Applications.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *handlers) getApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	app, err := h.Applications.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handlers) approveApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	user, err := h.Applications.Approve(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *handlers) rejectApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	var req reviewRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.Applications.Reject(r.Context(), CurrentUser(r), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
