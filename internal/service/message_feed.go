package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"clubhouse/internal/domain"
)

type InboxItem struct {
	Conversation *domain.Conversation `json:"conversation"`
	OtherUser    *domain.User         `json:"other_user"`
	UnreadCount  int                  `json:"unread_count"`
}

type Inbox struct {
	Conversations []InboxItem `json:"conversations"`
	TotalUnread   int         `json:"total_unread"`
}

type ConversationView struct {
	Conversation *domain.Conversation  `json:"conversation,omitempty"`
	OtherUser    *domain.User          `json:"other_user"`
	Messages     []MessageView         `json:"messages"`
	Throttle     domain.ThrottleStatus `json:"throttle"`
}

type GroupView struct {
	Scope    domain.GroupScope `json:"group_type"`
	Name     string            `json:"group_name"`
	Messages []MessageView     `json:"messages"`
}

type PollInput struct {
	LastCheck int64
	// UserID selects the conversation with that user.
	UserID *int64
	// Scope selects a group feed.
	Scope *domain.GroupScope
}

type PollResult struct {
	NewMessages []MessageView `json:"new_messages"`
	TotalUnread int           `json:"total_unread"`
}

// Inbox lists the viewer's conversations, most recently active first.
func (s *MessageService) Inbox(ctx context.Context, viewer *domain.User) (*Inbox, error) {
	repos := s.store.Repos()
	convs, err := repos.Conversations.ListForUser(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	unread, err := repos.Messages.CountUnreadByConversation(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}

	inbox := &Inbox{Conversations: make([]InboxItem, 0, len(convs))}
	for _, c := range convs {
		otherID, err := c.OtherParticipant(viewer.ID)
		if err != nil {
			return nil, err
		}
		other, err := repos.Users.GetByID(ctx, otherID)
		if err != nil {
			return nil, fmt.Errorf("load participant %d: %w", otherID, err)
		}
		n := unread[c.ID]
		inbox.Conversations = append(inbox.Conversations, InboxItem{Conversation: c, OtherUser: other, UnreadCount: n})
		inbox.TotalUnread += n
	}
	return inbox, nil
}

// StartConversation resolves the user to open a conversation with.
func (s *MessageService) StartConversation(ctx context.Context, viewer *domain.User, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	other, err := s.store.Repos().Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if other.ID == viewer.ID {
		return nil, fmt.Errorf("%w: you cannot message yourself", domain.ErrInvalidInput)
	}
	return other, nil
}

// Conversation returns the full conversation with otherID and marks
// everything addressed to the viewer as read.
func (s *MessageService) Conversation(ctx context.Context, viewer *domain.User, otherID int64) (*ConversationView, error) {
	pair, err := domain.NewPair(viewer.ID, otherID)
	if err != nil {
		return nil, err
	}
	repos := s.store.Repos()
	other, err := repos.Users.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	blocked, err := repos.Blocks.ExistsEither(ctx, viewer.ID, otherID)
	if err != nil {
		return nil, fmt.Errorf("check blocks: %w", err)
	}
	if blocked {
		return nil, domain.ErrBlocked
	}

	fc, err := repos.FirstContacts.Get(ctx, viewer.ID, otherID)
	if err != nil {
		return nil, err
	}
	view := &ConversationView{
		OtherUser: other,
		Messages:  []MessageView{},
		Throttle:  domain.NewThrottleStatus(fc, s.FirstContactLimit),
	}

	conv, err := repos.Conversations.FindByPair(ctx, pair)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return view, nil
	}
	view.Conversation = conv

	if _, err := repos.Messages.MarkRead(ctx, conv.ID, viewer.ID); err != nil {
		return nil, err
	}
	msgs, err := s.collect(ctx, domain.ConversationFeed{ConversationID: conv.ID}, 0)
	if err != nil {
		return nil, err
	}
	view.Messages, err = s.render(ctx, msgs, viewer, other)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Group returns the broadcast feed of scope.
func (s *MessageService) Group(ctx context.Context, viewer *domain.User, scope domain.GroupScope) (*GroupView, error) {
	if !scope.CanRead(viewer.Role) {
		return nil, fmt.Errorf("%w: admin chat is restricted to admins", domain.ErrForbidden)
	}
	msgs, err := s.collect(ctx, domain.GroupFeed{Scope: scope}, 0)
	if err != nil {
		return nil, err
	}
	views, err := s.render(ctx, msgs, viewer)
	if err != nil {
		return nil, err
	}
	return &GroupView{Scope: scope, Name: scope.DisplayName(), Messages: views}, nil
}

// Poll returns the messages newer than in.LastCheck in the selected feeds and
// the viewer's unread total.
//
// Only returned private messages addressed to the viewer are marked read, so
// repeating a poll with the same watermark changes nothing further.
func (s *MessageService) Poll(ctx context.Context, viewer *domain.User, in PollInput) (*PollResult, error) {
	if in.LastCheck < 0 {
		in.LastCheck = 0
	}
	res := &PollResult{NewMessages: []MessageView{}}
	repos := s.store.Repos()

	if in.UserID != nil {
		views, err := s.pollConversation(ctx, viewer, *in.UserID, in.LastCheck)
		if err != nil {
			s.metrics.Poll("conversation", "error")
			return nil, err
		}
		s.metrics.Poll("conversation", "ok")
		res.NewMessages = append(res.NewMessages, views...)
	}

	if in.Scope != nil {
		if !in.Scope.CanRead(viewer.Role) {
			s.metrics.Poll("group", "forbidden")
			return nil, fmt.Errorf("%w: admin chat is restricted to admins", domain.ErrForbidden)
		}
		msgs, err := s.collect(ctx, domain.GroupFeed{Scope: *in.Scope}, in.LastCheck)
		if err != nil {
			s.metrics.Poll("group", "error")
			return nil, err
		}
		views, err := s.render(ctx, msgs, viewer)
		if err != nil {
			return nil, err
		}
		s.metrics.Poll("group", "ok")
		res.NewMessages = append(res.NewMessages, views...)
	}

	total, err := repos.Messages.CountUnreadForReceiver(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	res.TotalUnread = total
	return res, nil
}

func (s *MessageService) pollConversation(ctx context.Context, viewer *domain.User, otherID, lastCheck int64) ([]MessageView, error) {
	pair, err := domain.NewPair(viewer.ID, otherID)
	if err != nil {
		return nil, nil
	}
	repos := s.store.Repos()
	other, err := repos.Users.GetByID(ctx, otherID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv, err := repos.Conversations.FindByPair(ctx, pair)
	if err != nil || conv == nil {
		return nil, err
	}

	msgs, err := s.collect(ctx, domain.ConversationFeed{ConversationID: conv.ID}, lastCheck)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	upto := msgs[len(msgs)-1].ID
	n, err := repos.Messages.MarkReadRange(ctx, conv.ID, viewer.ID, lastCheck, upto)
	if err != nil {
		return nil, err
	}
	s.log.Debug("poll marked messages read",
		zap.Int64("conversation_id", conv.ID), zap.Int64("reader_id", viewer.ID), zap.Int64("count", n))
	return s.render(ctx, msgs, viewer, other)
}

// collect drains the ledger sequence before anything else touches the store;
// on SQLite the open cursor holds the only connection.
func (s *MessageService) collect(ctx context.Context, scope domain.FeedScope, afterID int64) ([]*domain.Message, error) {
	var out []*domain.Message
	for m, err := range s.store.Repos().Messages.Since(ctx, scope, afterID) {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// render turns ledger rows into views, loading senders not in known.
func (s *MessageService) render(ctx context.Context, msgs []*domain.Message, viewer *domain.User, known ...*domain.User) ([]MessageView, error) {
	users := map[int64]*domain.User{viewer.ID: viewer}
	for _, u := range known {
		users[u.ID] = u
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := users[m.SenderID]
		if !ok {
			var err error
			sender, err = s.store.Repos().Users.GetByID(ctx, m.SenderID)
			if err != nil {
				return nil, fmt.Errorf("load sender %d: %w", m.SenderID, err)
			}
			users[m.SenderID] = sender
		}
		views = append(views, s.view(m, s.open(m), sender, viewer.ID))
	}
	return views, nil
}
