package postgres

import (
	"context"
	"database/sql"
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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id, created_at) VALUES ($1, $2, $3)
		RETURNING id
	`, b.BlockerID, b.BlockedID, b.CreatedAt).Scan(&b.ID)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blocks WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return requireAffected(res, "delete block")
}

func (r *BlockRepo) Exists(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2)
	`, blockerID, blockedID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return ok, nil
}

func (r *BlockRepo) ExistsEither(ctx context.Context, a, b int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2) OR (blocker_id = $2 AND blocked_id = $1)
		)
	`, a, b).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check blocks: %w", err)
	}
	return ok, nil
}

func (r *BlockRepo) ListByBlocker(ctx context.Context, blockerID int64) ([]*domain.Block, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, blocker_id, blocked_id, created_at
		FROM blocks WHERE blocker_id = $1
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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reports (reporter_id, reported_user_id, reason, description, reviewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rep.ReporterID, rep.ReportedUserID, string(rep.Reason), rep.Description, rep.Reviewed, rep.CreatedAt).Scan(&rep.ID)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepo) GetByID(ctx context.Context, id int64) (*domain.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

// ListByReviewed returns newest first. A limit <= 0 returns every row.
func (r *ReportRepo) ListByReviewed(ctx context.Context, reviewed bool, limit int) ([]*domain.Report, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports WHERE reviewed = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, reviewed, lim)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var res []*domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}

func (r *ReportRepo) MarkReviewed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET reviewed=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark report reviewed: %w", err)
	}
	return requireAffected(res, "mark report reviewed")
}

func scanReport(row rowScanner) (*domain.Report, error) {
	rep := &domain.Report{}
	var reason string
	if err := row.Scan(&rep.ID, &rep.ReporterID, &rep.ReportedUserID, &reason, &rep.Description, &rep.Reviewed, &rep.CreatedAt); err != nil {
		return nil, err
	}
	rep.Reason = domain.ReportReason(reason)
	return rep, nil
}
