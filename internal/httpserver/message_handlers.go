package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clubhouse/internal/domain"
	"clubhouse/internal/service"
)

type messageCreateRequest struct {
	Content string `json:"content"`
}

type startRequest struct {
	Username string `json:"username"`
}

func (h *handlers) inbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.Messages.Inbox(r.Context(), CurrentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

func (h *handlers) startConversation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	other, err := h.Messages.StartConversation(r.Context(), CurrentUser(r), req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, other)
}

func (h *handlers) conversation(w http.ResponseWriter, r *http.Request) {
	otherID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	view, err := h.Messages.Conversation(r.Context(), CurrentUser(r), otherID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) sendPrivate(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req messageCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.Messages.SendPrivate(r.Context(), CurrentUser(r), receiverID, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *handlers) group(w http.ResponseWriter, r *http.Request) {
	scope, err := domain.ParseGroupScope(chi.URLParam(r, "scope"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "unknown group")
		return
	}
	view, err := h.Messages.Group(r.Context(), CurrentUser(r), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) sendGroup(w http.ResponseWriter, r *http.Request) {
	scope, err := domain.ParseGroupScope(chi.URLParam(r, "scope"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "unknown group")
		return
	}
	var req messageCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.Messages.SendBroadcast(r.Context(), CurrentUser(r), scope, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// poll serves GET /api/messages/poll?last_check=&user_id=&group_type=.
// Malformed parameters are ignored; last_check falls back to 0.
func (h *handlers) poll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var in service.PollInput
	if v, err := strconv.ParseInt(q.Get("last_check"), 10, 64); err == nil {
		in.LastCheck = v
	}
	if v, err := strconv.ParseInt(q.Get("user_id"), 10, 64); err == nil {
		in.UserID = &v
	}
	if scope, err := domain.ParseGroupScope(q.Get("group_type")); err == nil {
		in.Scope = &scope
	}

	res, err := h.Messages.Poll(r.Context(), CurrentUser(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
