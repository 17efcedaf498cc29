package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/domain"
)

const (
	defaultMaxScore      = 100
	defaultProblemPoints = 10
)

// CompetitionService manages competitions, their problems and the
// submission and scoring workflow.
type CompetitionService struct {
	store domain.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewCompetitionService(store domain.Store, log *zap.Logger) *CompetitionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompetitionService{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type CompetitionInput struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	StartDate   time.Time                `json:"start_date"`
	EndDate     time.Time                `json:"end_date"`
	Status      domain.CompetitionStatus `json:"status"`
	MaxScore    int                      `json:"max_score"`
}

func (in *CompetitionInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Status == "" {
		in.Status = domain.CompetitionUpcoming
	}
	if in.MaxScore == 0 {
		in.MaxScore = defaultMaxScore
	}
	switch {
	case in.Title == "" || in.Description == "":
		return fmt.Errorf("%w: title and description are required", domain.ErrInvalidInput)
	case len([]rune(in.Title)) > maxTitleLength:
		return fmt.Errorf("%w: title is limited to %d characters", domain.ErrInvalidInput, maxTitleLength)
	case !in.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
	case in.MaxScore < 0:
		return fmt.Errorf("%w: max score must be positive", domain.ErrInvalidInput)
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return fmt.Errorf("%w: start and end dates are required", domain.ErrInvalidInput)
	case in.EndDate.Before(in.StartDate):
		return fmt.Errorf("%w: competition ends before it starts", domain.ErrInvalidInput)
	}
	return nil
}

type CompetitionDetail struct {
	Competition *domain.Competition `json:"competition"`
	Problems    []*domain.Problem   `json:"problems"`
	// MySubmission is the viewer's entry, omitted for admins.
	MySubmission *domain.Submission `json:"user_submission,omitempty"`
}

func (s *CompetitionService) List(ctx context.Context) ([]*domain.Competition, error) {
	list, err := s.store.Repos().Competitions.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Competition{}
	}
	return list, nil
}

func (s *CompetitionService) Get(ctx context.Context, viewer *domain.User, id int64) (*CompetitionDetail, error) {
	repo := s.store.Repos().Competitions
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	problems, err := repo.ListProblems(ctx, id)
	if err != nil {
		return nil, err
	}
	if problems == nil {
		problems = []*domain.Problem{}
	}
	detail := &CompetitionDetail{Competition: c, Problems: problems}
	if !viewer.IsAdmin() {
		detail.MySubmission, err = repo.FindSubmission(ctx, id, viewer.ID)
		if err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func (s *CompetitionService) Create(ctx context.Context, admin *domain.User, in CompetitionInput) (*domain.Competition, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	c := &domain.Competition{
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Status:      in.Status,
		MaxScore:    in.MaxScore,
		CreatedBy:   admin.ID,
		CreatedAt:   s.now(),
	}
	if err := s.store.Repos().Competitions.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("competition created", zap.Int64("competition_id", c.ID), zap.Int64("admin_id", admin.ID))
	return c, nil
}

func (s *CompetitionService) Update(ctx context.Context, id int64, in CompetitionInput) (*domain.Competition, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	repo := s.store.Repos().Competitions
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Title = in.Title
	c.Description = in.Description
	c.StartDate = in.StartDate.UTC()
	c.EndDate = in.EndDate.UTC()
	c.Status = in.Status
	c.MaxScore = in.MaxScore
	if err := repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CompetitionService) Delete(ctx context.Context, id int64) error {
	return s.store.Repos().Competitions.Delete(ctx, id)
}

type ProblemInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Order       int    `json:"order"`
}

func (s *CompetitionService) AddProblem(ctx context.Context, competitionID int64, in ProblemInput) (*domain.Problem, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: title and description are required", domain.ErrInvalidInput)
	}
	if in.Points == 0 {
		in.Points = defaultProblemPoints
	}
	if in.Points < 0 || in.Order < 0 {
		return nil, fmt.Errorf("%w: points and order must not be negative", domain.ErrInvalidInput)
	}
	repo := s.store.Repos().Competitions
	if _, err := repo.GetByID(ctx, competitionID); err != nil {
		return nil, err
	}
	p := &domain.Problem{
		CompetitionID: competitionID,
		Title:         in.Title,
		Description:   in.Description,
		Points:        in.Points,
		Position:      in.Order,
	}
	if err := repo.AddProblem(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Submit records the user's solution. A second submission replaces the
// solution of the first.
func (s *CompetitionService) Submit(ctx context.Context, user *domain.User, competitionID int64, solution string) (*domain.Submission, error) {
	solution = strings.TrimSpace(solution)
	if solution == "" {
		return nil, fmt.Errorf("%w: solution cannot be empty", domain.ErrInvalidInput)
	}

	var sub *domain.Submission
	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		if _, err := tx.Competitions.GetByID(ctx, competitionID); err != nil {
			return err
		}
		existing, err := tx.Competitions.FindSubmission(ctx, competitionID, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Solution = solution
			sub = existing
			return tx.Competitions.UpdateSolution(ctx, existing)
		}
		sub = &domain.Submission{
			CompetitionID: competitionID,
			UserID:        user.ID,
			Solution:      solution,
			SubmittedAt:   s.now(),
		}
		return tx.Competitions.CreateSubmission(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *CompetitionService) Submissions(ctx context.Context, competitionID int64) ([]*domain.Submission, error) {
	repo := s.store.Repos().Competitions
	if _, err := repo.GetByID(ctx, competitionID); err != nil {
		return nil, err
	}
	subs, err := repo.ListSubmissions(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*domain.Submission{}
	}
	return subs, nil
}

type ScoreInput struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Score grades a submission and recomputes the ranks of its competition in
// the same transaction.
func (s *CompetitionService) Score(ctx context.Context, admin *domain.User, submissionID int64, in ScoreInput) (*domain.Submission, error) {
	var scored *domain.Submission
	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		sub, err := tx.Competitions.GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		c, err := tx.Competitions.GetByID(ctx, sub.CompetitionID)
		if err != nil {
			return err
		}
		if in.Score < 0 || in.Score > c.MaxScore {
			return fmt.Errorf("%w: score must be between 0 and %d", domain.ErrInvalidInput, c.MaxScore)
		}

		now := s.now()
		scorer := admin.ID
		sub.Score = in.Score
		sub.Feedback = strings.TrimSpace(in.Feedback)
		sub.ScoredBy = &scorer
		sub.ScoredAt = &now
		if err := tx.Competitions.Score(ctx, sub); err != nil {
			return err
		}

		all, err := tx.Competitions.ListSubmissions(ctx, c.ID)
		if err != nil {
			return err
		}
		domain.RankSubmissions(all)
		for _, other := range all {
			if err := tx.Competitions.SetRank(ctx, other.ID, *other.Rank); err != nil {
				return err
			}
			if other.ID == sub.ID {
				sub.Rank = other.Rank
			}
		}
		scored = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("submission scored",
		zap.Int64("submission_id", submissionID), zap.Int("score", in.Score), zap.Int64("admin_id", admin.ID))
	return scored, nil
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Submission int64  `json:"submission_id"`
}

type Leaderboard struct {
	Competition *domain.Competition `json:"competition"`
	Entries     []LeaderboardEntry  `json:"leaderboard"`
}

func (s *CompetitionService) Leaderboard(ctx context.Context, competitionID int64) (*Leaderboard, error) {
	repos := s.store.Repos()
	c, err := repos.Competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	subs, err := repos.Competitions.ListSubmissions(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	domain.RankSubmissions(subs)

	board := &Leaderboard{Competition: c, Entries: make([]LeaderboardEntry, 0, len(subs))}
	for _, sub := range subs {
		u, err := repos.Users.GetByID(ctx, sub.UserID)
		if err != nil {
			return nil, fmt.Errorf("load contestant %d: %w", sub.UserID, err)
		}
		board.Entries = append(board.Entries, LeaderboardEntry{
			Rank:       *sub.Rank,
			UserID:     u.ID,
			Username:   u.Username,
			Name:       u.DisplayName(),
			Score:      sub.Score,
			Submission: sub.ID,
		})
	}
	return board, nil
}
