package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clubhouse/internal/domain"
)

type ConversationRepo struct {
	db dbtx
}

func NewConversationRepo(db dbtx) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) GetOrCreate(ctx context.Context, pair domain.Pair, now time.Time) (*domain.Conversation, error) {
	// A losing concurrent insert is ignored and the existing row read back.
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (user_low, user_high, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_low, user_high) DO NOTHING
	`, pair.Low, pair.High, now, now); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	c, err := r.FindByPair(ctx, pair)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("conversation %d/%d vanished after insert", pair.Low, pair.High)
	}
	return c, nil
}

func (r *ConversationRepo) FindByPair(ctx context.Context, pair domain.Pair) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations
		WHERE user_low = ? AND user_high = ?
	`, pair.Low, pair.High))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// Lock is a no-op: the single SQLite connection already serializes transactions.
func (r *ConversationRepo) Lock(ctx context.Context, id int64) error {
	return nil
}

func (r *ConversationRepo) Touch(ctx context.Context, id int64, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return requireAffected(res, "touch conversation")
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations
		WHERE user_low = ? OR user_high = ?
		ORDER BY updated_at DESC, id DESC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := row.Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return c, nil
}
