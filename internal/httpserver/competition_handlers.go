package httpserver

import (
	"net/http"

	"clubhouse/internal/service"
)

type submitRequest struct {
	Solution string `json:"solution"`
}

func (h *handlers) listCompetitions(w http.ResponseWriter, r *http.Request) {
	list, err := h.Competitions.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) getCompetition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	detail, err := h.Competitions.Get(r.Context(), CurrentUser(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	board, err := h.Competitions.Leaderboard(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.Competitions.Submit(r.Context(), CurrentUser(r), id, req.Solution)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handlers) createCompetition(w http.ResponseWriter, r *http.Request) {
	var req service.CompetitionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Competitions.Create(r.Context(), CurrentUser(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handlers) updateCompetition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	var req service.CompetitionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Competitions.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCompetition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	if err := h.Competitions.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addProblem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	var req service.ProblemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Competitions.AddProblem(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handlers) submissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "competitionID")
	if !ok {
		return
	}
	subs, err := h.Competitions.Submissions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handlers) score(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "submissionID")
	if !ok {
		return
	}
	var req service.ScoreInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.Competitions.Score(r.Context(), CurrentUser(r), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
