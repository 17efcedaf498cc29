package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/domain"
)

func TestNewPair(t *testing.T) {
	ab, err := domain.NewPair(5, 9)
	require.NoError(t, err)
	ba, err := domain.NewPair(9, 5)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, domain.Pair{Low: 5, High: 9}, ab)

	_, err = domain.NewPair(3, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFirstContactStateMachine(t *testing.T) {
	const limit = 3
	assert.Equal(t, domain.ContactOpen, domain.StateOf(nil, limit))

	fc := &domain.FirstContact{SenderID: 5, ReceiverID: 9}
	for i := 1; i <= limit; i++ {
		require.NoError(t, fc.RecordSend(limit), "send %d", i)
		assert.Equal(t, i, fc.SentCount)
	}
	assert.Equal(t, domain.ContactBlocked, domain.StateOf(fc, limit))

	err := fc.RecordSend(limit)
	assert.ErrorIs(t, err, domain.ErrRateLimitExceeded)
	assert.Equal(t, limit, fc.SentCount)

	assert.True(t, fc.RecordReply())
	assert.False(t, fc.RecordReply())
	assert.Equal(t, domain.ContactUnlocked, domain.StateOf(fc, limit))

	for range 5 {
		require.NoError(t, fc.RecordSend(limit))
	}
	assert.Equal(t, limit, fc.SentCount, "unlocked records stop counting")
}

func TestNewThrottleStatus(t *testing.T) {
	t.Run("Open", func(t *testing.T) {
		st := domain.NewThrottleStatus(nil, 3)
		assert.Equal(t, domain.ContactOpen, st.State)
		assert.True(t, st.CanSend)
		assert.Empty(t, st.Warning)
	})

	t.Run("Throttling", func(t *testing.T) {
		st := domain.NewThrottleStatus(&domain.FirstContact{SentCount: 2}, 3)
		assert.Equal(t, domain.ContactThrottling, st.State)
		assert.True(t, st.CanSend)
		assert.Contains(t, st.Warning, "2/3")
	})

	t.Run("Blocked", func(t *testing.T) {
		st := domain.NewThrottleStatus(&domain.FirstContact{SentCount: 3}, 3)
		assert.Equal(t, domain.ContactBlocked, st.State)
		assert.False(t, st.CanSend)
		assert.NotEmpty(t, st.Warning)
	})

	t.Run("Unlocked", func(t *testing.T) {
		st := domain.NewThrottleStatus(&domain.FirstContact{SentCount: 3, ReplyReceived: true}, 3)
		assert.Equal(t, domain.ContactUnlocked, st.State)
		assert.True(t, st.CanSend)
		assert.Empty(t, st.Warning)
	})
}

func TestRankSubmissions(t *testing.T) {
	subs := []*domain.Submission{{Score: 90}, {Score: 90}, {Score: 70}, {Score: 10}}
	domain.RankSubmissions(subs)

	var ranks []int
	for _, s := range subs {
		require.NotNil(t, s.Rank)
		ranks = append(ranks, *s.Rank)
	}
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
}

func TestGroupScope(t *testing.T) {
	scope, err := domain.ParseGroupScope("admin")
	require.NoError(t, err)
	assert.Equal(t, domain.GroupAdmins, scope)
	assert.False(t, scope.CanRead(domain.RoleMember))
	assert.True(t, scope.CanRead(domain.RoleAdmin))
	assert.True(t, domain.GroupAll.CanRead(domain.RoleMember))

	_, err = domain.ParseGroupScope("everyone")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConversationOtherParticipant(t *testing.T) {
	c := &domain.Conversation{UserLow: 2, UserHigh: 8}
	other, err := c.OtherParticipant(2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), other)

	_, err = c.OtherParticipant(4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
