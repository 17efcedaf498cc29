package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/domain"
	"clubhouse/internal/metrics"
	"clubhouse/internal/ratelimit"
	"clubhouse/internal/service"
	"clubhouse/internal/ws"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config       *config.Config
	Log          *zap.Logger
	Metrics      *metrics.Metrics
	Hub          *ws.Hub
	PollLimiter  ratelimit.Limiter
	Auth         *service.AuthService
	Users        *service.UserService
	Applications *service.ApplicationService
	Messages     *service.MessageService
	Moderation   *service.ModerationService
	Posts        *service.PostService
	Competitions *service.CompetitionService
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": d.Config.AppName + " API", "version": "1.0.0"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", d.Metrics.Handler())

	h := &handlers{Deps: d, log: log}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/applications", h.apply)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Auth, log))

			r.Post("/auth/logout", h.logout)
			r.Get("/auth/me", h.me)

			r.Get("/members", h.members)
			r.Get("/profile", h.profile)
			r.Put("/profile", h.updateProfile)
			r.Get("/users/{userID}", h.getUser)

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", h.inbox)
				r.Post("/start", h.startConversation)
				r.Get("/conversations/{userID}", h.conversation)
				r.Post("/conversations/{userID}", h.sendPrivate)
				r.Get("/groups/{scope}", h.group)
				r.Post("/groups/{scope}", h.sendGroup)
				r.With(PollRateLimit(d.PollLimiter, log)).Get("/poll", h.poll)
			})

			r.Route("/moderation", func(r chi.Router) {
				r.Get("/blocks", h.blockedUsers)
				r.Post("/blocks/{userID}", h.block)
				r.Delete("/blocks/{userID}", h.unblock)
				r.Post("/reports/{userID}", h.report)
			})

			r.Get("/posts", h.listPosts)
			r.Get("/posts/{postID}", h.getPost)
			r.Post("/posts/{postID}/comments", h.addComment)
			r.Put("/comments/{commentID}", h.editComment)
			r.Delete("/comments/{commentID}", h.deleteComment)

			r.Get("/competitions", h.listCompetitions)
			r.Get("/competitions/{competitionID}", h.getCompetition)
			r.Get("/competitions/{competitionID}/leaderboard", h.leaderboard)
			r.Post("/competitions/{competitionID}/submissions", h.submit)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin))

				r.Get("/applications", h.applicationsDashboard)
				r.Get("/applications/{applicationID}", h.getApplication)
				r.Post("/applications/{applicationID}/approve", h.approveApplication)
				r.Post("/applications/{applicationID}/reject", h.rejectApplication)

				r.Post("/members/{userID}/kick", h.kick)

				r.Get("/moderation/reports", h.reportsDashboard)
				r.Post("/moderation/reports/{reportID}/reviewed", h.markReportReviewed)

				r.Post("/posts", h.createPost)
				r.Put("/posts/{postID}", h.updatePost)
				r.Delete("/posts/{postID}", h.deletePost)

				r.Post("/competitions", h.createCompetition)
				r.Put("/competitions/{competitionID}", h.updateCompetition)
				r.Delete("/competitions/{competitionID}", h.deleteCompetition)
				r.Post("/competitions/{competitionID}/problems", h.addProblem)
				r.Get("/competitions/{competitionID}/submissions", h.submissions)
				r.Post("/submissions/{submissionID}/score", h.score)
			})
		})
	})

	if d.Hub != nil {
		r.Get("/ws", ws.MakeHandler(d.Hub, d.Auth, d.Users, d.Messages, d.Metrics, log, d.Config.CORSOrigins))
	}

	return r
}

type handlers struct {
	Deps
	log *zap.Logger
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and answered with a generic 500.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeMessage(w, status, "internal server error")
		return
	}
	writeMessage(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pathID parses an int64 URL parameter, answering 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
