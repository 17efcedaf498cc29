package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clubhouse/internal/domain"
)

const applicationColumns = `id, username, email, hashed_password, first_name, last_name, age, school,
	programming_experience, why_join, status, rejection_reason, submitted_at, reviewed_at, reviewed_by`

type ApplicationRepo struct {
	db dbtx
}

func NewApplicationRepo(db dbtx) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

var _ domain.ApplicationRepository = (*ApplicationRepo)(nil)

func (r *ApplicationRepo) Create(ctx context.Context, a *domain.Application) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO applications (username, email, hashed_password, first_name, last_name, age, school,
			programming_experience, why_join, status, rejection_reason, submitted_at, reviewed_at, reviewed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Username, a.Email, a.HashedPassword, a.FirstName, a.LastName, a.Age, a.School,
		a.ProgrammingExperience, a.WhyJoin, a.Status, a.RejectionReason, a.SubmittedAt, a.ReviewedAt, a.ReviewedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert application: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	return nil
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *ApplicationRepo) ListByStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = ?
		ORDER BY submitted_at DESC, id DESC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var res []*domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r *ApplicationRepo) CountByStatus(ctx context.Context, status domain.ApplicationStatus) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

func (r *ApplicationRepo) Update(ctx context.Context, a *domain.Application) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE applications SET status = ?, rejection_reason = ?, reviewed_at = ?, reviewed_by = ?
		WHERE id = ?
	`, a.Status, a.RejectionReason, a.ReviewedAt, a.ReviewedBy, a.ID)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return requireAffected(res, "update application")
}

func (r *ApplicationRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return requireAffected(res, "delete application")
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	a := &domain.Application{}
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.HashedPassword, &a.FirstName, &a.LastName, &a.Age, &a.School,
		&a.ProgrammingExperience, &a.WhyJoin, &a.Status, &a.RejectionReason, &a.SubmittedAt, &a.ReviewedAt, &a.ReviewedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	return a, nil
}
