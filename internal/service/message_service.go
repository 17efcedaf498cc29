package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/domain"
	"clubhouse/internal/metrics"
	"clubhouse/internal/security"
)

// Notifier pushes new-message events to connected clients. Delivery is best
// effort and never fails a send.
type Notifier interface {
	NotifyUsers(userIDs []int64, event any)
	NotifyScope(scope domain.GroupScope, event any)
}

type nopNotifier struct{}

func (nopNotifier) NotifyUsers([]int64, any)            {}
func (nopNotifier) NotifyScope(domain.GroupScope, any) {}

// MessageEvent is the payload pushed for every appended message.
type MessageEvent struct {
	Type           string            `json:"type"`
	ConversationID int64             `json:"conversation_id,omitempty"`
	Scope          domain.GroupScope `json:"group_type,omitempty"`
	Message        MessageView       `json:"message"`
}

// MessageView is the client representation of a message. IsMine is relative
// to the requesting user.
type MessageView struct {
	ID         int64  `json:"id"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Time       string `json:"time"`
	IsMine     bool   `json:"is_mine"`
}

const timeLayout = "03:04 PM"

// MessageService implements private and group messaging with first-contact
// throttling.
type MessageService struct {
	store     domain.Store
	encryptor *security.Encryptor
	notifier  Notifier
	metrics   *metrics.Metrics
	log       *zap.Logger

	FirstContactLimit int
	now               func() time.Time
}

func NewMessageService(
	store domain.Store,
	encryptor *security.Encryptor,
	notifier Notifier,
	m *metrics.Metrics,
	log *zap.Logger,
	firstContactLimit int,
) *MessageService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if firstContactLimit <= 0 {
		firstContactLimit = domain.DefaultFirstContactLimit
	}
	return &MessageService{
		store:             store,
		encryptor:         encryptor,
		notifier:          notifier,
		metrics:           m,
		log:               log,
		FirstContactLimit: firstContactLimit,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Reachable returns ErrBlocked when either user has blocked the other.
func (s *MessageService) Reachable(ctx context.Context, senderID, receiverID int64) error {
	blocked, err := s.store.Repos().Blocks.ExistsEither(ctx, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("check blocks: %w", err)
	}
	if blocked {
		return domain.ErrBlocked
	}
	return nil
}

// SendPrivate appends a private message from sender to receiverID.
//
// The limiter check, the append, the conversation touch and the reciprocal
// unlock commit together or not at all. ErrRateLimitExceeded leaves every
// record untouched.
func (s *MessageService) SendPrivate(ctx context.Context, sender *domain.User, receiverID int64, body string) (*MessageView, error) {
	content := strings.TrimSpace(body)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	pair, err := domain.NewPair(sender.ID, receiverID)
	if err != nil {
		return nil, err
	}

	receiver, err := s.store.Repos().Users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if err := s.Reachable(ctx, sender.ID, receiverID); err != nil {
		return nil, err
	}

	sealed, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	now := s.now()
	msg := &domain.Message{
		SenderID:  sender.ID,
		Content:   sealed,
		CreatedAt: now,
	}
	var unlocked bool

	err = s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		conv, err := tx.Conversations.GetOrCreate(ctx, pair, now)
		if err != nil {
			return fmt.Errorf("get or create conversation: %w", err)
		}
		if err := tx.Conversations.Lock(ctx, conv.ID); err != nil {
			return err
		}

		if err := tx.FirstContacts.Ensure(ctx, sender.ID, receiverID, now); err != nil {
			return err
		}
		fc, err := tx.FirstContacts.FindForUpdate(ctx, sender.ID, receiverID)
		if err != nil {
			return err
		}
		if fc == nil {
			return fmt.Errorf("first contact %d->%d missing after ensure", sender.ID, receiverID)
		}
		if err := fc.RecordSend(s.FirstContactLimit); err != nil {
			return err
		}
		if err := tx.FirstContacts.Update(ctx, fc); err != nil {
			return err
		}

		msg.Target = domain.PrivateTarget{ConversationID: conv.ID, ReceiverID: receiverID}
		if err := tx.Messages.Create(ctx, msg); err != nil {
			return err
		}
		if err := tx.Conversations.Touch(ctx, conv.ID, now); err != nil {
			return err
		}

		// Any send by the original receiver counts as a reply, even when
		// its own outbound record is still throttled.
		reverse, err := tx.FirstContacts.FindForUpdate(ctx, receiverID, sender.ID)
		if err != nil {
			return err
		}
		if reverse != nil && reverse.RecordReply() {
			unlocked = true
			return tx.FirstContacts.Update(ctx, reverse)
		}
		return nil
	})
	if errors.Is(err, domain.ErrRateLimitExceeded) {
		s.metrics.FirstContactRejected()
		s.log.Debug("first contact limit reached",
			zap.Int64("sender_id", sender.ID), zap.Int64("receiver_id", receiverID))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.MessageSent("private")
	s.log.Debug("private message sent",
		zap.Int64("message_id", msg.ID),
		zap.Int64("sender_id", sender.ID),
		zap.Int64("receiver_id", receiverID),
		zap.Bool("reciprocal_unlocked", unlocked),
	)

	view := s.view(msg, content, sender, sender.ID)
	target := msg.Target.(domain.PrivateTarget)
	event := MessageEvent{Type: "new_message", ConversationID: target.ConversationID, Message: view}
	event.Message.IsMine = false
	s.notifier.NotifyUsers([]int64{receiver.ID}, event)
	return &view, nil
}

// SendBroadcast appends a group message to scope. Only admins may post to
// the admin scope.
func (s *MessageService) SendBroadcast(ctx context.Context, sender *domain.User, scope domain.GroupScope, body string) (*MessageView, error) {
	if !scope.CanRead(sender.Role) {
		return nil, fmt.Errorf("%w: admin chat is restricted to admins", domain.ErrForbidden)
	}
	content := strings.TrimSpace(body)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	sealed, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	msg := &domain.Message{
		SenderID:  sender.ID,
		Content:   sealed,
		CreatedAt: s.now(),
		Target:    domain.BroadcastTarget{Scope: scope},
	}
	err = s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		if err := tx.Messages.LockScope(ctx, scope); err != nil {
			return err
		}
		return tx.Messages.Create(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MessageSent("broadcast")
	s.log.Debug("broadcast sent",
		zap.Int64("message_id", msg.ID), zap.Int64("sender_id", sender.ID), zap.String("scope", string(scope)))

	view := s.view(msg, content, sender, sender.ID)
	event := MessageEvent{Type: "new_message", Scope: scope, Message: view}
	event.Message.IsMine = false
	s.notifier.NotifyScope(scope, event)
	return &view, nil
}

func (s *MessageService) view(m *domain.Message, content string, sender *domain.User, viewerID int64) MessageView {
	return MessageView{
		ID:         m.ID,
		Sender:     sender.Username,
		SenderName: sender.DisplayName(),
		Content:    content,
		Time:       m.CreatedAt.Format(timeLayout),
		IsMine:     m.SenderID == viewerID,
	}
}

// open decrypts a stored body. Rows that do not decrypt are returned as
// stored.
func (s *MessageService) open(m *domain.Message) string {
	plain, err := s.encryptor.Decrypt(m.Content)
	if err != nil {
		s.log.Warn("message body not decryptable", zap.Int64("message_id", m.ID))
		return m.Content
	}
	return plain
}
