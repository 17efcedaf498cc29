package httpserver

import (
	"net/http"

	"clubhouse/internal/service"
)

type commentRequest struct {
	Content string `json:"content"`
}

func (h *handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.Posts.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *handlers) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	detail, err := h.Posts.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handlers) createPost(w http.ResponseWriter, r *http.Request) {
	var req service.PostInput
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Posts.Create(r.Context(), CurrentUser(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handlers) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var req service.PostInput
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Posts.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	if err := h.Posts.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Posts.AddComment(r.Context(), CurrentUser(r), postID, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handlers) editComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Posts.EditComment(r.Context(), CurrentUser(r), id, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	if err := h.Posts.DeleteComment(r.Context(), CurrentUser(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
