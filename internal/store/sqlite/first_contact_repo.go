package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clubhouse/internal/domain"
)

type FirstContactRepo struct {
	db dbtx
}

func NewFirstContactRepo(db dbtx) *FirstContactRepo {
	return &FirstContactRepo{db: db}
}

var _ domain.FirstContactRepository = (*FirstContactRepo)(nil)

// FindForUpdate reads the record. Row locking is unnecessary on SQLite,
// where the enclosing transaction already owns the only connection.
func (r *FirstContactRepo) FindForUpdate(ctx context.Context, senderID, receiverID int64) (*domain.FirstContact, error) {
	return r.Get(ctx, senderID, receiverID)
}

func (r *FirstContactRepo) Get(ctx context.Context, senderID, receiverID int64) (*domain.FirstContact, error) {
	fc := &domain.FirstContact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT sender_id, receiver_id, sent_count, reply_received, created_at
		FROM first_contacts
		WHERE sender_id = ? AND receiver_id = ?
	`, senderID, receiverID).Scan(&fc.SenderID, &fc.ReceiverID, &fc.SentCount, &fc.ReplyReceived, &fc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get first contact: %w", err)
	}
	return fc, nil
}

func (r *FirstContactRepo) Ensure(ctx context.Context, senderID, receiverID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO first_contacts (sender_id, receiver_id, sent_count, reply_received, created_at)
		VALUES (?, ?, 0, 0, ?)
		ON CONFLICT (sender_id, receiver_id) DO NOTHING
	`, senderID, receiverID, now)
	if err != nil {
		return fmt.Errorf("ensure first contact: %w", err)
	}
	return nil
}

func (r *FirstContactRepo) Update(ctx context.Context, fc *domain.FirstContact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE first_contacts SET sent_count = ?, reply_received = ?
		WHERE sender_id = ? AND receiver_id = ?
	`, fc.SentCount, fc.ReplyReceived, fc.SenderID, fc.ReceiverID)
	if err != nil {
		return fmt.Errorf("update first contact: %w", err)
	}
	return requireAffected(res, "update first contact")
}
