package postgres

import (
	"context"
	"database/sql"
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
	// ON CONFLICT waits for a concurrent inserter of the same pair to finish,
	// so the follow-up select always sees the winning row.
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (user_low, user_high, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_low, user_high) DO NOTHING
	`, pair.Low, pair.High, now); err != nil {
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
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations
		WHERE user_low = $1 AND user_high = $2
	`, pair.Low, pair.High).Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// Lock takes the conversation row lock. Every send locks the conversation
// before touching first-contact rows, so both directions of a pair queue on
// the same lock.
func (r *ConversationRepo) Lock(ctx context.Context, id int64) error {
	var got int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) Touch(ctx context.Context, id int64, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at=$1 WHERE id=$2`, now, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return requireAffected(res, "touch conversation")
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations
		WHERE user_low = $1 OR user_high = $1
		ORDER BY updated_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
