package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/domain"
)

const reviewedReportsShown = 20

// ModerationService handles member blocks and reports.
type ModerationService struct {
	store domain.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewModerationService(store domain.Store, log *zap.Logger) *ModerationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModerationService{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// target loads a user that viewer may block or report.
func (s *ModerationService) target(ctx context.Context, viewer *domain.User, userID int64, verb string) (*domain.User, error) {
	if userID == viewer.ID {
		return nil, fmt.Errorf("%w: you cannot %s yourself", domain.ErrForbidden, verb)
	}
	u, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return nil, fmt.Errorf("%w: you cannot %s admins", domain.ErrForbidden, verb)
	}
	return u, nil
}

func (s *ModerationService) Block(ctx context.Context, viewer *domain.User, userID int64) (*domain.Block, error) {
	if _, err := s.target(ctx, viewer, userID, "block"); err != nil {
		return nil, err
	}
	b := &domain.Block{BlockerID: viewer.ID, BlockedID: userID, CreatedAt: s.now()}
	if err := s.store.Repos().Blocks.Create(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info("user blocked", zap.Int64("blocker_id", viewer.ID), zap.Int64("blocked_id", userID))
	return b, nil
}

func (s *ModerationService) Unblock(ctx context.Context, viewer *domain.User, userID int64) error {
	if err := s.store.Repos().Blocks.Delete(ctx, viewer.ID, userID); err != nil {
		return fmt.Errorf("unblock: %w", err)
	}
	return nil
}

type BlockedUser struct {
	User      *domain.User `json:"user"`
	BlockedAt time.Time    `json:"blocked_at"`
}

func (s *ModerationService) Blocked(ctx context.Context, viewer *domain.User) ([]BlockedUser, error) {
	repos := s.store.Repos()
	blocks, err := repos.Blocks.ListByBlocker(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	out := make([]BlockedUser, 0, len(blocks))
	for _, b := range blocks {
		u, err := repos.Users.GetByID(ctx, b.BlockedID)
		if err != nil {
			return nil, err
		}
		out = append(out, BlockedUser{User: u, BlockedAt: b.CreatedAt})
	}
	return out, nil
}

type ReportInput struct {
	Reason      domain.ReportReason `json:"reason"`
	Description string              `json:"description"`
}

func (s *ModerationService) Report(ctx context.Context, viewer *domain.User, userID int64, in ReportInput) (*domain.Report, error) {
	if !in.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown report reason %q", domain.ErrInvalidInput, in.Reason)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if _, err := s.target(ctx, viewer, userID, "report"); err != nil {
		return nil, err
	}
	r := &domain.Report{
		ReporterID:     viewer.ID,
		ReportedUserID: userID,
		Reason:         in.Reason,
		Description:    desc,
		CreatedAt:      s.now(),
	}
	if err := s.store.Repos().Reports.Create(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("user reported",
		zap.Int64("report_id", r.ID), zap.Int64("reported_user_id", userID), zap.String("reason", string(r.Reason)))
	return r, nil
}

type ReportsDashboard struct {
	Unreviewed []*domain.Report `json:"unreviewed_reports"`
	Reviewed   []*domain.Report `json:"reviewed_reports"`
}

func (s *ModerationService) Reports(ctx context.Context) (*ReportsDashboard, error) {
	reports := s.store.Repos().Reports
	unreviewed, err := reports.ListByReviewed(ctx, false, 0)
	if err != nil {
		return nil, err
	}
	reviewed, err := reports.ListByReviewed(ctx, true, reviewedReportsShown)
	if err != nil {
		return nil, err
	}
	if unreviewed == nil {
		unreviewed = []*domain.Report{}
	}
	if reviewed == nil {
		reviewed = []*domain.Report{}
	}
	return &ReportsDashboard{Unreviewed: unreviewed, Reviewed: reviewed}, nil
}

func (s *ModerationService) MarkReviewed(ctx context.Context, id int64) error {
	return s.store.Repos().Reports.MarkReviewed(ctx, id)
}
