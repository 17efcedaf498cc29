package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"clubhouse/internal/domain"
)

type MessageRepo struct {
	db dbtx
}

func NewMessageRepo(db dbtx) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, sender_id, content, is_read, created_at, is_group, group_scope, conversation_id, receiver_id`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	var (
		isGroup        bool
		scope          sql.NullString
		conversationID sql.NullInt64
		receiverID     sql.NullInt64
	)
	switch t := m.Target.(type) {
	case domain.PrivateTarget:
		conversationID = sql.NullInt64{Int64: t.ConversationID, Valid: true}
		receiverID = sql.NullInt64{Int64: t.ReceiverID, Valid: true}
	case domain.BroadcastTarget:
		isGroup = true
		scope = sql.NullString{String: string(t.Scope), Valid: true}
	default:
		return fmt.Errorf("%w: message without target", domain.ErrInvalidInput)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, is_read, created_at, is_group, group_scope)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`, conversationID, m.SenderID, receiverID, m.Content, m.CreatedAt, isGroup, scope)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	m.IsRead = false
	return nil
}

// LockScope is a no-op: the single connection already serializes every
// transaction.
func (r *MessageRepo) LockScope(context.Context, domain.GroupScope) error {
	return nil
}

func (r *MessageRepo) Since(ctx context.Context, scope domain.FeedScope, afterID int64) iter.Seq2[*domain.Message, error] {
	return func(yield func(*domain.Message, error) bool) {
		var (
			rows *sql.Rows
			err  error
		)
		switch s := scope.(type) {
		case domain.ConversationFeed:
			rows, err = r.db.QueryContext(ctx, `
				SELECT `+messageColumns+`
				FROM messages
				WHERE conversation_id = ? AND id > ?
				ORDER BY id ASC
			`, s.ConversationID, afterID)
		case domain.GroupFeed:
			rows, err = r.db.QueryContext(ctx, `
				SELECT `+messageColumns+`
				FROM messages
				WHERE is_group = 1 AND group_scope = ? AND id > ?
				ORDER BY id ASC
			`, string(s.Scope), afterID)
		default:
			err = fmt.Errorf("%w: unknown feed scope", domain.ErrInvalidInput)
		}
		if err != nil {
			yield(nil, fmt.Errorf("query messages: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows)
			if !yield(m, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate messages: %w", err))
		}
	}
}

func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0
	`, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}

func (r *MessageRepo) MarkReadRange(ctx context.Context, conversationID, readerID, afterID, uptoID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0
		  AND id > ? AND id <= ?
	`, conversationID, readerID, afterID, uptoID)
	if err != nil {
		return 0, fmt.Errorf("mark read range: %w", err)
	}
	return res.RowsAffected()
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0
	`, conversationID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (r *MessageRepo) CountUnreadByConversation(ctx context.Context, userID int64) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*)
		FROM messages
		WHERE receiver_id = ? AND is_read = 0 AND conversation_id IS NOT NULL
		GROUP BY conversation_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread by conversation: %w", err)
	}
	defer rows.Close()

	res := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		res[id] = n
	}
	return res, rows.Err()
}

func (r *MessageRepo) CountUnreadForReceiver(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread for receiver: %w", err)
	}
	return n, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m              domain.Message
		isGroup        bool
		scope          sql.NullString
		conversationID sql.NullInt64
		receiverID     sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt,
		&isGroup, &scope, &conversationID, &receiverID); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if isGroup {
		m.Target = domain.BroadcastTarget{Scope: domain.GroupScope(scope.String)}
	} else {
		m.Target = domain.PrivateTarget{ConversationID: conversationID.Int64, ReceiverID: receiverID.Int64}
	}
	return &m, nil
}
