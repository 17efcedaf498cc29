package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"clubhouse/internal/domain"
)

type ProfileRepo struct {
	db dbtx
}

func NewProfileRepo(db dbtx) *ProfileRepo {
	return &ProfileRepo{db: db}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, age, school, programming_experience, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.UserID, p.Age, p.School, p.ProgrammingExperience, p.Bio, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert profile: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, age, school, programming_experience, bio, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Age, &p.School, &p.ProgrammingExperience, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET age=$1, school=$2, programming_experience=$3, bio=$4, updated_at=$5
		WHERE user_id=$6
	`, p.Age, p.School, p.ProgrammingExperience, p.Bio, p.UpdatedAt, p.UserID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res, "update profile")
}

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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO applications (username, email, hashed_password, first_name, last_name, age, school,
			programming_experience, why_join, status, rejection_reason, submitted_at, reviewed_at, reviewed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, a.Username, a.Email, a.HashedPassword, a.FirstName, a.LastName, a.Age, a.School,
		a.ProgrammingExperience, a.WhyJoin, string(a.Status), a.RejectionReason, a.SubmittedAt, a.ReviewedAt, a.ReviewedBy,
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert application: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (r *ApplicationRepo) ListByStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = $1
		ORDER BY submitted_at DESC, id DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var res []*domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r *ApplicationRepo) CountByStatus(ctx context.Context, status domain.ApplicationStatus) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

func (r *ApplicationRepo) Update(ctx context.Context, a *domain.Application) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE applications SET status=$1, rejection_reason=$2, reviewed_at=$3, reviewed_by=$4
		WHERE id=$5
	`, string(a.Status), a.RejectionReason, a.ReviewedAt, a.ReviewedBy, a.ID)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return requireAffected(res, "update application")
}

func (r *ApplicationRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return requireAffected(res, "delete application")
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	a := &domain.Application{}
	var status string
	if err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.HashedPassword, &a.FirstName, &a.LastName, &a.Age, &a.School,
		&a.ProgrammingExperience, &a.WhyJoin, &status, &a.RejectionReason, &a.SubmittedAt, &a.ReviewedAt, &a.ReviewedBy,
	); err != nil {
		return nil, err
	}
	a.Status = domain.ApplicationStatus(status)
	return a, nil
}
