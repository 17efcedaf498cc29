package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clubhouse/internal/domain"
)

type CompetitionRepo struct {
	db dbtx
}

func NewCompetitionRepo(db dbtx) *CompetitionRepo {
	return &CompetitionRepo{db: db}
}

var _ domain.CompetitionRepository = (*CompetitionRepo)(nil)

const (
	competitionColumns = `id, title, description, start_date, end_date, status, max_score, created_by, created_at`
	submissionColumns  = `id, competition_id, user_id, solution, score, rank, submitted_at, scored_by, scored_at, feedback`
)

func (r *CompetitionRepo) Create(ctx context.Context, c *domain.Competition) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO competitions (title, description, start_date, end_date, status, max_score, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Title, c.Description, c.StartDate, c.EndDate, string(c.Status), c.MaxScore, c.CreatedBy, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert competition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *CompetitionRepo) GetByID(ctx context.Context, id int64) (*domain.Competition, error) {
	c, err := scanCompetition(r.db.QueryRowContext(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (r *CompetitionRepo) List(ctx context.Context) ([]*domain.Competition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+competitionColumns+` FROM competitions ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	var res []*domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *CompetitionRepo) Update(ctx context.Context, c *domain.Competition) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE competitions
		SET title = ?, description = ?, start_date = ?, end_date = ?, status = ?, max_score = ?
		WHERE id = ?
	`, c.Title, c.Description, c.StartDate, c.EndDate, string(c.Status), c.MaxScore, c.ID)
	if err != nil {
		return fmt.Errorf("update competition: %w", err)
	}
	return requireAffected(res, "update competition")
}

func (r *CompetitionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM competitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete competition: %w", err)
	}
	return requireAffected(res, "delete competition")
}

func (r *CompetitionRepo) AddProblem(ctx context.Context, p *domain.Problem) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO problems (competition_id, title, description, points, position)
		VALUES (?, ?, ?, ?, ?)
	`, p.CompetitionID, p.Title, p.Description, p.Points, p.Position)
	if err != nil {
		return fmt.Errorf("insert problem: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return nil
}

func (r *CompetitionRepo) ListProblems(ctx context.Context, competitionID int64) ([]*domain.Problem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, competition_id, title, description, points, position
		FROM problems WHERE competition_id = ?
		ORDER BY position ASC, id ASC
	`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var res []*domain.Problem
	for rows.Next() {
		p := &domain.Problem{}
		if err := rows.Scan(&p.ID, &p.CompetitionID, &p.Title, &p.Description, &p.Points, &p.Position); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *CompetitionRepo) GetSubmission(ctx context.Context, id int64) (*domain.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *CompetitionRepo) FindSubmission(ctx context.Context, competitionID, userID int64) (*domain.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE competition_id = ? AND user_id = ?
	`, competitionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *CompetitionRepo) CreateSubmission(ctx context.Context, s *domain.Submission) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO submissions (competition_id, user_id, solution, score, submitted_at, feedback)
		VALUES (?, ?, ?, 0, ?, '')
	`, s.CompetitionID, s.UserID, s.Solution, s.SubmittedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	s.ID = id
	return nil
}

func (r *CompetitionRepo) UpdateSolution(ctx context.Context, s *domain.Submission) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET solution = ?, submitted_at = ? WHERE id = ?
	`, s.Solution, s.SubmittedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update solution: %w", err)
	}
	return requireAffected(res, "update solution")
}

func (r *CompetitionRepo) Score(ctx context.Context, s *domain.Submission) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET score = ?, feedback = ?, scored_by = ?, scored_at = ? WHERE id = ?
	`, s.Score, s.Feedback, s.ScoredBy, s.ScoredAt, s.ID)
	if err != nil {
		return fmt.Errorf("score submission: %w", err)
	}
	return requireAffected(res, "score submission")
}

func (r *CompetitionRepo) ListSubmissions(ctx context.Context, competitionID int64) ([]*domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions WHERE competition_id = ?
		ORDER BY score DESC, submitted_at ASC, id ASC
	`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var res []*domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *CompetitionRepo) SetRank(ctx context.Context, submissionID int64, rank int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE submissions SET rank = ? WHERE id = ?`, rank, submissionID)
	if err != nil {
		return fmt.Errorf("set rank: %w", err)
	}
	return requireAffected(res, "set rank")
}

func scanCompetition(row rowScanner) (*domain.Competition, error) {
	c := &domain.Competition{}
	var status string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.StartDate, &c.EndDate, &status, &c.MaxScore, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan competition: %w", err)
	}
	c.Status = domain.CompetitionStatus(status)
	return c, nil
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	s := &domain.Submission{}
	var (
		rank     sql.NullInt64
		scoredBy sql.NullInt64
		scoredAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.CompetitionID, &s.UserID, &s.Solution, &s.Score, &rank,
		&s.SubmittedAt, &scoredBy, &scoredAt, &s.Feedback)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	if rank.Valid {
		v := int(rank.Int64)
		s.Rank = &v
	}
	if scoredBy.Valid {
		s.ScoredBy = &scoredBy.Int64
	}
	if scoredAt.Valid {
		s.ScoredAt = &scoredAt.Time
	}
	return s, nil
}
