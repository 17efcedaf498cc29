package postgres

import (
	"context"
	"database/sql"
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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO competitions (title, description, start_date, end_date, status, max_score, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, c.Title, c.Description, c.StartDate, c.EndDate, string(c.Status), c.MaxScore, c.CreatedBy, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert competition: %w", err)
	}
	return nil
}

func (r *CompetitionRepo) GetByID(ctx context.Context, id int64) (*domain.Competition, error) {
	c, err := scanCompetition(r.db.QueryRowContext(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return c, nil
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
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *CompetitionRepo) Update(ctx context.Context, c *domain.Competition) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE competitions
		SET title=$1, description=$2, start_date=$3, end_date=$4, status=$5, max_score=$6
		WHERE id=$7
	`, c.Title, c.Description, c.StartDate, c.EndDate, string(c.Status), c.MaxScore, c.ID)
	if err != nil {
		return fmt.Errorf("update competition: %w", err)
	}
	return requireAffected(res, "update competition")
}

func (r *CompetitionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM competitions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete competition: %w", err)
	}
	return requireAffected(res, "delete competition")
}

func (r *CompetitionRepo) AddProblem(ctx context.Context, p *domain.Problem) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO problems (competition_id, title, description, points, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.CompetitionID, p.Title, p.Description, p.Points, p.Position).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert problem: %w", err)
	}
	return nil
}

func (r *CompetitionRepo) ListProblems(ctx context.Context, competitionID int64) ([]*domain.Problem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, competition_id, title, description, points, position
		FROM problems WHERE competition_id = $1
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
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return s, nil
}

func (r *CompetitionRepo) FindSubmission(ctx context.Context, competitionID, userID int64) (*domain.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE competition_id = $1 AND user_id = $2
	`, competitionID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return s, nil
}

func (r *CompetitionRepo) CreateSubmission(ctx context.Context, s *domain.Submission) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO submissions (competition_id, user_id, solution, score, submitted_at, feedback)
		VALUES ($1, $2, $3, 0, $4, '')
		RETURNING id
	`, s.CompetitionID, s.UserID, s.Solution, s.SubmittedAt).Scan(&s.ID)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *CompetitionRepo) UpdateSolution(ctx context.Context, s *domain.Submission) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET solution=$1, submitted_at=$2 WHERE id=$3
	`, s.Solution, s.SubmittedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update solution: %w", err)
	}
	return requireAffected(res, "update solution")
}

func (r *CompetitionRepo) Score(ctx context.Context, s *domain.Submission) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET score=$1, feedback=$2, scored_by=$3, scored_at=$4 WHERE id=$5
	`, s.Score, s.Feedback, s.ScoredBy, s.ScoredAt, s.ID)
	if err != nil {
		return fmt.Errorf("score submission: %w", err)
	}
	return requireAffected(res, "score submission")
}

func (r *CompetitionRepo) ListSubmissions(ctx context.Context, competitionID int64) ([]*domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions WHERE competition_id = $1
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
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *CompetitionRepo) SetRank(ctx context.Context, submissionID int64, rank int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE submissions SET rank=$1 WHERE id=$2`, rank, submissionID)
	if err != nil {
		return fmt.Errorf("set rank: %w", err)
	}
	return requireAffected(res, "set rank")
}

func scanCompetition(row rowScanner) (*domain.Competition, error) {
	c := &domain.Competition{}
	var status string
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.StartDate, &c.EndDate, &status, &c.MaxScore, &c.CreatedBy, &c.CreatedAt); err != nil {
		return nil, err
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
	if err := row.Scan(&s.ID, &s.CompetitionID, &s.UserID, &s.Solution, &s.Score, &rank,
		&s.SubmittedAt, &scoredBy, &scoredAt, &s.Feedback); err != nil {
		return nil, err
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
