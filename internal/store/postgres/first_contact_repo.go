package postgres

import (
	"context"
	"database/sql"
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

const firstContactSelect = `
	SELECT sender_id, receiver_id, sent_count, reply_received, created_at
	FROM first_contacts
	WHERE sender_id = $1 AND receiver_id = $2`

func (r *FirstContactRepo) Get(ctx context.Context, senderID, receiverID int64) (*domain.FirstContact, error) {
	return r.find(ctx, firstContactSelect, senderID, receiverID)
}

func (r *FirstContactRepo) FindForUpdate(ctx context.Context, senderID, receiverID int64) (*domain.FirstContact, error) {
	return r.find(ctx, firstContactSelect+` FOR UPDATE`, senderID, receiverID)
}

func (r *FirstContactRepo) find(ctx context.Context, query string, senderID, receiverID int64) (*domain.FirstContact, error) {
	fc := &domain.FirstContact{}
	err := r.db.QueryRowContext(ctx, query, senderID, receiverID).
		Scan(&fc.SenderID, &fc.ReceiverID, &fc.SentCount, &fc.ReplyReceived, &fc.CreatedAt)
	if err == sql.ErrNoRows {
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
		VALUES ($1, $2, 0, FALSE, $3)
		ON CONFLICT (sender_id, receiver_id) DO NOTHING
	`, senderID, receiverID, now)
	if err != nil {
		return fmt.Errorf("ensure first contact: %w", err)
	}
	return nil
}

func (r *FirstContactRepo) Update(ctx context.Context, fc *domain.FirstContact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE first_contacts SET sent_count=$1, reply_received=$2
		WHERE sender_id=$3 AND receiver_id=$4
	`, fc.SentCount, fc.ReplyReceived, fc.SenderID, fc.ReceiverID)
	if err != nil {
		return fmt.Errorf("update first contact: %w", err)
	}
	return requireAffected(res, "update first contact")
}
