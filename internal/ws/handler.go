package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clubhouse/internal/domain"
	"clubhouse/internal/metrics"
	"clubhouse/internal/service"
)

// Authenticator resolves the user behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Presence records online status.
type Presence interface {
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if _, wildcard := allowed["*"]; wildcard {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			// Non-browser clients do not send an origin.
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		_, ok := allowed[strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))]
		return ok
	}
}

// tokenFromRequest reads the access token from the token query parameter,
// the Authorization header or the "bearer, <token>" subprotocol pair.
func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	parts := strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// inbound is a client frame.
type inbound struct {
	Type       string `json:"type"`
	ReceiverID int64  `json:"receiver_id"`
	GroupType  string `json:"group_type"`
	Content    string `json:"content"`
}

// MakeHandler returns the /ws handler. After authentication the connection
// receives new_message events and may send:
//   - message        {receiver_id, content}  private send
//   - group_message  {group_type, content}   broadcast send
//   - typing         {receiver_id}           forwarded to the receiver
func MakeHandler(
	hub *Hub,
	auth Authenticator,
	presence Presence,
	msgSvc *service.MessageService,
	m *metrics.Metrics,
	log *zap.Logger,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		user, err := auth.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("ws upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx := context.WithoutCancel(r.Context())
		c := &client{conn: conn, role: user.Role}

		if err := presence.SetOnlineStatus(ctx, user.ID, true); err != nil {
			log.Warn("ws set online failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		hub.register(user.ID, c)
		m.WSConnected()
		log.Debug("ws connected", zap.Int64("user_id", user.ID))
		defer func() {
			hub.unregister(user.ID, c)
			m.WSDisconnected()
			if !hub.Online(user.ID) {
				if err := presence.SetOnlineStatus(ctx, user.ID, false); err != nil {
					log.Warn("ws set offline failed", zap.Int64("user_id", user.ID), zap.Error(err))
				}
			}
			log.Debug("ws disconnected", zap.Int64("user_id", user.ID))
		}()

		for {
			var in inbound
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			switch in.Type {
			case "message":
				if _, err := msgSvc.SendPrivate(ctx, user, in.ReceiverID, in.Content); err != nil {
					sendError(c, err)
				}

			case "group_message":
				scope, err := domain.ParseGroupScope(in.GroupType)
				if err != nil {
					sendError(c, err)
					continue
				}
				if _, err := msgSvc.SendBroadcast(ctx, user, scope, in.Content); err != nil {
					sendError(c, err)
				}

			case "typing":
				if in.ReceiverID == 0 || in.ReceiverID == user.ID {
					continue
				}
				if err := msgSvc.Reachable(ctx, user.ID, in.ReceiverID); err != nil {
					if !errors.Is(err, domain.ErrBlocked) {
						log.Warn("ws typing check failed", zap.Int64("user_id", user.ID), zap.Error(err))
					}
					continue
				}
				hub.NotifyUsers([]int64{in.ReceiverID}, map[string]any{
					"type":     "typing",
					"user_id":  user.ID,
					"username": user.Username,
				})

			default:
				log.Debug("ws unknown event type", zap.String("type", in.Type), zap.Int64("user_id", user.ID))
			}
		}
	}
}

// sendError reports a failed client request. Internal errors are not echoed.
func sendError(c *client, err error) {
	msg := "request failed"
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrRateLimitExceeded):
		msg = err.Error()
	}
	_ = c.send(map[string]any{
		"type":    "error",
		"message": msg,
	})
}
