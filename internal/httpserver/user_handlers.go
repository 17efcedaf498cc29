package httpserver

import (
	"net/http"

	"clubhouse/internal/service"
)

func (h *handlers) members(w http.ResponseWriter, r *http.Request) {
	res, err := h.Users.Members(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.Users.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	view, err := h.Users.Profile(r.Context(), CurrentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.Users.UpdateProfile(r.Context(), CurrentUser(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) kick(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req reviewRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Users.Kick(r.Context(), CurrentUser(r), id, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
