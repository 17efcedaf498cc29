package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/domain"
	"clubhouse/internal/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return sqlite.NewStore(db)
}

func createUser(t *testing.T, s *sqlite.Store, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		Role:           domain.RoleMember,
		IsActive:       true,
	}
	require.NoError(t, s.Repos().Users.Create(context.Background(), u))
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, sqlite.Migrate(db))
	require.NoError(t, sqlite.Migrate(db))
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	alice := createUser(t, s, "alice")
	assert.NotZero(t, alice.ID)

	got, err := s.Repos().Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.True(t, got.IsActive)

	dup := &domain.User{Username: "alice", Email: "other@example.com", HashedPassword: "x", Role: domain.RoleMember}
	assert.ErrorIs(t, s.Repos().Users.Create(ctx, dup), domain.ErrConflict)

	_, err = s.Repos().Users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationGetOrCreate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	now := time.Now().UTC()

	ab, _ := domain.NewPair(a.ID, b.ID)
	ba, _ := domain.NewPair(b.ID, a.ID)

	first, err := s.Repos().Conversations.GetOrCreate(ctx, ab, now)
	require.NoError(t, err)
	second, err := s.Repos().Conversations.GetOrCreate(ctx, ba, now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Less(t, first.UserLow, first.UserHigh)

	found, err := s.Repos().Conversations.FindByPair(ctx, ba)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	c := createUser(t, s, "c")
	ac, _ := domain.NewPair(a.ID, c.ID)
	missing, err := s.Repos().Conversations.FindByPair(ctx, ac)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessageLedger(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	now := time.Now().UTC()
	pair, _ := domain.NewPair(a.ID, b.ID)
	conv, err := s.Repos().Conversations.GetOrCreate(ctx, pair, now)
	require.NoError(t, err)

	msgs := s.Repos().Messages
	var ids []int64
	for i := range 4 {
		m := &domain.Message{
			SenderID:  a.ID,
			Content:   fmt.Sprintf("m%d", i),
			CreatedAt: now,
			Target:    domain.PrivateTarget{ConversationID: conv.ID, ReceiverID: b.ID},
		}
		require.NoError(t, msgs.Create(ctx, m))
		ids = append(ids, m.ID)
	}
	group := &domain.Message{SenderID: a.ID, Content: "hey all", CreatedAt: now, Target: domain.BroadcastTarget{Scope: domain.GroupAll}}
	require.NoError(t, msgs.Create(ctx, group))

	var seen []int64
	for m, err := range msgs.Since(ctx, domain.ConversationFeed{ConversationID: conv.ID}, ids[1]) {
		require.NoError(t, err)
		_, private := m.Private()
		assert.True(t, private)
		seen = append(seen, m.ID)
	}
	assert.Equal(t, ids[2:], seen)

	var groupSeen []int64
	for m, err := range msgs.Since(ctx, domain.GroupFeed{Scope: domain.GroupAll}, 0) {
		require.NoError(t, err)
		groupSeen = append(groupSeen, m.ID)
	}
	assert.Equal(t, []int64{group.ID}, groupSeen)

	n, err := msgs.CountUnread(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	marked, err := msgs.MarkReadRange(ctx, conv.ID, b.ID, ids[0], ids[2])
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	total, err := msgs.CountUnreadForReceiver(ctx, b.ID)
	require.NoError(t, err)
	byConv, err := msgs.CountUnreadByConversation(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, map[int64]int{conv.ID: 2}, byConv)

	marked, err = msgs.MarkRead(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
	marked, err = msgs.MarkRead(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.Zero(t, marked)

	n, err = msgs.CountUnreadForReceiver(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFirstContactRepo(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	fcs := s.Repos().FirstContacts

	fc, err := fcs.Get(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, fc)

	now := time.Now().UTC()
	require.NoError(t, fcs.Ensure(ctx, a.ID, b.ID, now))
	require.NoError(t, fcs.Ensure(ctx, a.ID, b.ID, now))

	fc, err = fcs.FindForUpdate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, fc)
	assert.Zero(t, fc.SentCount)

	fc.SentCount = 2
	fc.ReplyReceived = true
	require.NoError(t, fcs.Update(ctx, fc))

	fc, err = fcs.Get(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fc.SentCount)
	assert.True(t, fc.ReplyReceived)

	reverse, err := fcs.Get(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Nil(t, reverse)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")

	err := s.WithinTx(ctx, func(tx *domain.Repositories) error {
		if err := tx.FirstContacts.Ensure(ctx, a.ID, b.ID, time.Now().UTC()); err != nil {
			return err
		}
		return domain.ErrRateLimitExceeded
	})
	require.ErrorIs(t, err, domain.ErrRateLimitExceeded)

	fc, err := s.Repos().FirstContacts.Get(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, fc)
}

func TestBlocksAndReports(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	now := time.Now().UTC()

	require.NoError(t, s.Repos().Blocks.Create(ctx, &domain.Block{BlockerID: a.ID, BlockedID: b.ID, CreatedAt: now}))
	err := s.Repos().Blocks.Create(ctx, &domain.Block{BlockerID: a.ID, BlockedID: b.ID, CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrConflict)

	either, err := s.Repos().Blocks.ExistsEither(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, either)
	direct, err := s.Repos().Blocks.Exists(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, direct)

	require.NoError(t, s.Repos().Blocks.Delete(ctx, a.ID, b.ID))
	assert.ErrorIs(t, s.Repos().Blocks.Delete(ctx, a.ID, b.ID), domain.ErrNotFound)

	for i := range 3 {
		r := &domain.Report{
			ReporterID:     a.ID,
			ReportedUserID: b.ID,
			Reason:         domain.ReasonSpam,
			Description:    fmt.Sprintf("report %d", i),
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.Repos().Reports.Create(ctx, r))
	}

	all, err := s.Repos().Reports.ListByReviewed(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "report 2", all[0].Description)

	limited, err := s.Repos().Reports.ListByReviewed(ctx, false, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, s.Repos().Reports.MarkReviewed(ctx, all[0].ID))
	reviewed, err := s.Repos().Reports.ListByReviewed(ctx, true, 20)
	require.NoError(t, err)
	require.Len(t, reviewed, 1)
	assert.True(t, reviewed[0].Reviewed)
}
