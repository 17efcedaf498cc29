package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/domain"
	"clubhouse/internal/security"
)

// ApplicationService runs the membership application workflow.
type ApplicationService struct {
	store domain.Store
	hash  *security.PasswordHasher
	log   *zap.Logger
	now   func() time.Time
}

func NewApplicationService(store domain.Store, hash *security.PasswordHasher, log *zap.Logger) *ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ApplicationService{
		store: store,
		hash:  hash,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type ApplyInput struct {
	Username              string `json:"username"`
	Email                 string `json:"email"`
	Password              string `json:"password"`
	PasswordConfirm       string `json:"password_confirm"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	Age                   int    `json:"age"`
	School                string `json:"school"`
	ProgrammingExperience string `json:"programming_experience"`
	WhyJoin               string `json:"why_join"`
}

func (in *ApplyInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.School = strings.TrimSpace(in.School)
	in.ProgrammingExperience = strings.TrimSpace(in.ProgrammingExperience)
	in.WhyJoin = strings.TrimSpace(in.WhyJoin)

	switch {
	case in.Username == "" || in.Email == "" || in.FirstName == "" || in.LastName == "":
		return fmt.Errorf("%w: username, email and full name are required", domain.ErrInvalidInput)
	case !strings.Contains(in.Email, "@"):
		return fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	case in.Age <= 0:
		return fmt.Errorf("%w: age must be positive", domain.ErrInvalidInput)
	case in.School == "" || in.ProgrammingExperience == "" || in.WhyJoin == "":
		return fmt.Errorf("%w: school, experience and motivation are required", domain.ErrInvalidInput)
	case in.Password != in.PasswordConfirm:
		return fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}
	if err := security.CheckPasswordPolicy(in.Password); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// Apply submits a pending application. The username and email must be free
// both among members and among other applications.
func (s *ApplicationService) Apply(ctx context.Context, in ApplyInput) (*domain.Application, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	users := s.store.Repos().Users
	if _, err := users.GetByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: this username is already taken", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := users.GetByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: an account with this email already exists", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	app := &domain.Application{
		Username:              in.Username,
		Email:                 in.Email,
		HashedPassword:        hashed,
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		Age:                   in.Age,
		School:                in.School,
		ProgrammingExperience: in.ProgrammingExperience,
		WhyJoin:               in.WhyJoin,
		Status:                domain.ApplicationPending,
		SubmittedAt:           s.now(),
	}
	if err := s.store.Repos().Applications.Create(ctx, app); err != nil {
		return nil, err
	}
	s.log.Info("application submitted", zap.Int64("application_id", app.ID), zap.String("username", app.Username))
	return app, nil
}

type ApplicationDashboard struct {
	Pending       []*domain.Application `json:"pending_applications"`
	ApprovedCount int                   `json:"approved_count"`
	RejectedCount int                   `json:"rejected_count"`
}

func (s *ApplicationService) Dashboard(ctx context.Context) (*ApplicationDashboard, error) {
	apps := s.store.Repos().Applications
	pending, err := apps.ListByStatus(ctx, domain.ApplicationPending)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []*domain.Application{}
	}
	approved, err := apps.CountByStatus(ctx, domain.ApplicationApproved)
	if err != nil {
		return nil, err
	}
	rejected, err := apps.CountByStatus(ctx, domain.ApplicationRejected)
	if err != nil {
		return nil, err
	}
	return &ApplicationDashboard{Pending: pending, ApprovedCount: approved, RejectedCount: rejected}, nil
}

func (s *ApplicationService) Get(ctx context.Context, id int64) (*domain.Application, error) {
	return s.store.Repos().Applications.GetByID(ctx, id)
}

// Approve provisions the member account and profile and removes the
// application, all in one transaction.
func (s *ApplicationService) Approve(ctx context.Context, id int64) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		app, err := tx.Applications.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationPending {
			return fmt.Errorf("%w: this application has already been reviewed", domain.ErrConflict)
		}
		user, err = provision(ctx, tx, ProvisionInput{
			Username:              app.Username,
			Email:                 app.Email,
			HashedPassword:        app.HashedPassword,
			FirstName:             app.FirstName,
			LastName:              app.LastName,
			Role:                  domain.RoleMember,
			Age:                   app.Age,
			School:                app.School,
			ProgrammingExperience: app.ProgrammingExperience,
		}, s.now())
		if err != nil {
			return err
		}
		return tx.Applications.Delete(ctx, app.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("application approved", zap.Int64("application_id", id), zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *ApplicationService) Reject(ctx context.Context, admin *domain.User, id int64, reason string) (*domain.Application, error) {
	var app *domain.Application
	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		var err error
		app, err = tx.Applications.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationPending {
			return fmt.Errorf("%w: this application has already been reviewed", domain.ErrConflict)
		}
		now := s.now()
		reviewer := admin.ID
		app.Status = domain.ApplicationRejected
		app.RejectionReason = strings.TrimSpace(reason)
		app.ReviewedAt = &now
		app.ReviewedBy = &reviewer
		return tx.Applications.Update(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("application rejected", zap.Int64("application_id", id), zap.Int64("admin_id", admin.ID))
	return app, nil
}
