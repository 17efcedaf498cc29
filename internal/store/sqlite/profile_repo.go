package sqlite

import (
	"context"
	"database/sql"
	"errors"
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
		VALUES (?, ?, ?, ?, ?, ?, ?)
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
		FROM profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.Age, &p.School, &p.ProgrammingExperience, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET age = ?, school = ?, programming_experience = ?, bio = ?, updated_at = ?
		WHERE user_id = ?
	`, p.Age, p.School, p.ProgrammingExperience, p.Bio, p.UpdatedAt, p.UserID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res, "update profile")
}
