package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clubhouse/internal/domain"
)

type BlockRepo struct {
	db dbtx
}

func NewBlockRepo(db dbtx) *BlockRepo {
	return &BlockRepo{db: db}
}

var _ domain.BlockRepository = (*BlockRepo)(nil)

func (r *BlockRepo) Create(ctx context.Context, b *domain.Block) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)
	`, b.BlockerID, b.BlockedID, b.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	b.ID = id
	return nil
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return requireAffected(res, "delete block")
}

func (r *BlockRepo) Exists(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks WHERE blocker_id = ? AND blocked_id = ?
	`, blockerID, blockedID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return n > 0, nil
}

func (r *BlockRepo) ExistsEither(ctx context.Context, a, b int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks
		WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)
	`, a, b, b, a).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check blocks: %w", err)
	}
	return n > 0, nil
}

func (r *BlockRepo) ListByBlocker(ctx context.Context, blockerID int64) ([]*domain.Block, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, blocker_id, blocked_id, created_at
		FROM blocks WHERE blocker_id = ?
		ORDER BY created_at DESC, id DESC
	`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var res []*domain.Block
	for rows.Next() {
		b := &domain.Block{}
		if err := rows.Scan(&b.ID, &b.BlockerID, &b.BlockedID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

type ReportRepo struct {
	db dbtx
}

func NewReportRepo(db dbtx) *ReportRepo {
	return &ReportRepo{db: db}
}

var _ domain.ReportRepository = (*ReportRepo)(nil)

const reportColumns = `id, reporter_id, reported_user_id, reason, description, reviewed, created_at`

func (r *ReportRepo) Create(ctx context.Context, rep *domain.Report) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (reporter_id, reported_user_id, reason, description, reviewed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rep.ReporterID, rep.ReportedUserID, string(rep.Reason), rep.Description, rep.Reviewed, rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rep.ID = id
	return nil
}

func (r *ReportRepo) GetByID(ctx context.Context, id int64) (*domain.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rep, err
}

// ListByReviewed returns newest first. A limit <= 0 returns every row.
func (r *ReportRepo) ListByReviewed(ctx context.Context, reviewed bool, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports WHERE reviewed = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, reviewed, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var res []*domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}

func (r *ReportRepo) MarkReviewed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET reviewed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark report reviewed: %w", err)
	}
	return requireAffected(res, "mark report reviewed")
}

func scanReport(row rowScanner) (*domain.Report, error) {
	rep := &domain.Report{}
	var reason string
	err := row.Scan(&rep.ID, &rep.ReporterID, &rep.ReportedUserID, &reason, &rep.Description, &rep.Reviewed, &rep.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	rep.Reason = domain.ReportReason(reason)
	return rep, nil
}
