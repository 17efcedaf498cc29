package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/domain"
	"clubhouse/internal/httpserver"
	"clubhouse/internal/ratelimit"
	"clubhouse/internal/security"
	"clubhouse/internal/service"
	"clubhouse/internal/store/sqlite"
)

const testPassword = "Password1!"

type testServer struct {
	handler http.Handler
	users   map[string]*domain.User
	tokens  map[string]string
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	store := sqlite.NewStore(db)

	log := zap.NewNop()
	hasher := security.NewPasswordHasher(4)
	enc, err := security.NewEncryptor([]byte("test-key"), nil)
	require.NoError(t, err)
	tokens := security.NewTokenService("test-secret", time.Hour)

	users := service.NewUserService(store, log)
	auth := service.NewAuthService(store.Repos().Users, tokens, hasher)

	ts := &testServer{users: map[string]*domain.User{}, tokens: map[string]string{}}
	hashed, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	for _, seed := range []struct {
		name string
		role domain.Role
	}{{"alice", domain.RoleMember}, {"bob", domain.RoleMember}, {"root", domain.RoleAdmin}} {
		u, err := users.Provision(ctx, service.ProvisionInput{
			Username:       seed.name,
			Email:          seed.name + "@example.com",
			HashedPassword: hashed,
			FirstName:      seed.name,
			Role:           seed.role,
		})
		require.NoError(t, err)
		ts.users[seed.name] = u
	}

	ts.handler = httpserver.NewRouter(httpserver.Deps{
		Config:       &config.Config{AppName: "Clubhouse API", CORSOrigins: []string{"*"}},
		Log:          log,
		PollLimiter:  limiter,
		Auth:         auth,
		Users:        users,
		Applications: service.NewApplicationService(store, hasher, log),
		Messages:     service.NewMessageService(store, enc, nil, nil, log, 3),
		Moderation:   service.NewModerationService(store, log),
		Posts:        service.NewPostService(store),
		Competitions: service.NewCompetitionService(store, log),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.login(t, user))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, user string) string {
	t.Helper()
	if tok, ok := ts.tokens[user]; ok {
		return tok
	}
	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", service.LoginInput{Username: user, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp service.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	ts.tokens[user] = resp.AccessToken
	return resp.AccessToken
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", service.LoginInput{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	bad := httptest.NewRecorder()
	ts.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	rec = ts.do(t, http.MethodGet, "/api/auth/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.True(t, me.IsOnline)
}

func TestRequireRole(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/applications", "/api/moderation/reports"} {
		rec := ts.do(t, http.MethodGet, path, "alice", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = ts.do(t, http.MethodGet, path, "root", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := ts.do(t, http.MethodPost, "/api/posts", "alice", service.PostInput{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/posts", "root", service.PostInput{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPublicApplication(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/applications", "", service.ApplyInput{
		Username: "newbie", Email: "newbie@example.com", Password: testPassword, PasswordConfirm: testPassword,
		FirstName: "New", LastName: "Bie", Age: 15, School: "West", ProgrammingExperience: "none", WhyJoin: "learn",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/applications", "", service.ApplyInput{Username: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrivateMessagingOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, bob := ts.users["alice"], ts.users["bob"]
	toBob := fmt.Sprintf("/api/messages/conversations/%d", bob.ID)

	for _, body := range []string{"hi", "you there?", "please respond"} {
		rec := ts.do(t, http.MethodPost, toBob, "alice", map[string]string{"content": body})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := ts.do(t, http.MethodPost, toBob, "alice", map[string]string{"content": "hello?"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = ts.do(t, http.MethodPost, toBob, "alice", map[string]string{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/messages/poll?user_id=%d&last_check=0", alice.ID), "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var poll struct {
		NewMessages []map[string]any `json:"new_messages"`
		TotalUnread int              `json:"total_unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &poll))
	require.Len(t, poll.NewMessages, 3)
	assert.Zero(t, poll.TotalUnread)

	first := poll.NewMessages[0]
	for _, key := range []string{"id", "sender", "sender_name", "content", "time", "is_mine"} {
		assert.Contains(t, first, key)
	}
	assert.Equal(t, "alice", first["sender"])
	assert.Equal(t, "hi", first["content"])
	assert.Equal(t, false, first["is_mine"])

	rec = ts.do(t, http.MethodGet, "/api/messages/poll?user_id=oops&group_type=nope", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"new_messages":[],"total_unread":0}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/messages/conversations/%d", alice.ID), "bob", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodPost, toBob, "alice", map[string]string{"content": "finally"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/messages/", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox service.Inbox
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox.Conversations, 1)
	assert.Equal(t, 1, inbox.TotalUnread)
}

func TestGroupMessagingOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/messages/groups/admin", "alice", map[string]string{"content": "hi admins"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/messages/groups/admin", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/messages/groups/everyone", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/messages/poll?group_type=admin", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/messages/groups/admin", "root", map[string]string{"content": "staff only"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/messages/groups/all", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all service.GroupView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Empty(t, all.Messages)

	rec = ts.do(t, http.MethodGet, "/api/messages/groups/admin", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var admins service.GroupView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admins))
	require.Len(t, admins.Messages, 1)
	assert.Equal(t, "staff only", admins.Messages[0].Content)
}

func TestPollRateLimit(t *testing.T) {
	ts := newTestServer(t, ratelimit.NewLocalLimiter(1, 1))

	rec := ts.do(t, http.MethodGet, "/api/messages/poll", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/messages/poll", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = ts.do(t, http.MethodGet, "/api/messages/poll", "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "budgets are per user")
}

func TestInvalidPathID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/users/abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/users/999", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
