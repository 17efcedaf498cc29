package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/domain"
)

const (
	maxBioLength  = 500
	kickedWhyJoin = "[User was removed from club]"
	defaultKick   = "Removed by admin"
)

// UserService provides member and profile operations.
type UserService struct {
	store domain.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewUserService(store domain.Store, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type Members struct {
	Admins       []*domain.User `json:"admins"`
	Members      []*domain.User `json:"members"`
	AdminCount   int            `json:"admin_count"`
	MemberCount  int            `json:"member_count"`
	TotalMembers int            `json:"total_members"`
}

func (s *UserService) Members(ctx context.Context) (*Members, error) {
	repos := s.store.Repos()
	admins, err := repos.Users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	members, err := repos.Users.ListByRole(ctx, domain.RoleMember)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []*domain.User{}
	}
	if members == nil {
		members = []*domain.User{}
	}
	return &Members{
		Admins:       admins,
		Members:      members,
		AdminCount:   len(admins),
		MemberCount:  len(members),
		TotalMembers: len(admins) + len(members),
	}, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.Repos().Users.GetByID(ctx, id)
}

func (s *UserService) SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error {
	return s.store.Repos().Users.SetOnlineStatus(ctx, id, isOnline)
}

type ProfileView struct {
	User     *domain.User    `json:"user"`
	Profile  *domain.Profile `json:"profile"`
	Complete bool            `json:"is_complete"`
}

func (s *UserService) Profile(ctx context.Context, user *domain.User) (*ProfileView, error) {
	p, err := s.store.Repos().Profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{User: user, Profile: p, Complete: p.IsComplete(user)}, nil
}

// ProfileUpdate carries the editable fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	Email                 *string `json:"email"`
	Age                   *int    `json:"age"`
	School                *string `json:"school"`
	ProgrammingExperience *string `json:"programming_experience"`
	Bio                   *string `json:"bio"`
}

func (s *UserService) UpdateProfile(ctx context.Context, user *domain.User, in ProfileUpdate) (*ProfileView, error) {
	if in.Bio != nil && len([]rune(*in.Bio)) > maxBioLength {
		return nil, fmt.Errorf("%w: bio is limited to %d characters", domain.ErrInvalidInput, maxBioLength)
	}
	if in.Age != nil && *in.Age <= 0 {
		return nil, fmt.Errorf("%w: age must be positive", domain.ErrInvalidInput)
	}
	if in.Email != nil && !strings.Contains(*in.Email, "@") {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}

	var view *ProfileView
	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		u, err := tx.Users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		p, err := tx.Profiles.GetByUserID(ctx, user.ID)
		if err != nil {
			return err
		}

		setString(&u.FirstName, in.FirstName)
		setString(&u.LastName, in.LastName)
		setString(&u.Email, in.Email)
		setString(&p.School, in.School)
		setString(&p.ProgrammingExperience, in.ProgrammingExperience)
		setString(&p.Bio, in.Bio)
		if in.Age != nil {
			p.Age = *in.Age
		}
		p.UpdatedAt = s.now()

		if err := tx.Users.Update(ctx, u); err != nil {
			return err
		}
		if err := tx.Profiles.Update(ctx, p); err != nil {
			return err
		}
		view = &ProfileView{User: u, Profile: p, Complete: p.IsComplete(u)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Kick removes a member from the club. The account is deleted and a
// rejected application is kept as the record of the removal.
func (s *UserService) Kick(ctx context.Context, admin *domain.User, userID int64, reason string) error {
	if userID == admin.ID {
		return fmt.Errorf("%w: you cannot kick yourself", domain.ErrForbidden)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultKick
	}

	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		u, err := tx.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.IsAdmin() {
			return fmt.Errorf("%w: admins cannot be kicked", domain.ErrForbidden)
		}
		p, err := tx.Profiles.GetByUserID(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			p = &domain.Profile{}
		} else if err != nil {
			return err
		}

		now := s.now()
		reviewer := admin.ID
		record := &domain.Application{
			Username:              u.Username,
			Email:                 u.Email,
			HashedPassword:        u.HashedPassword,
			FirstName:             u.FirstName,
			LastName:              u.LastName,
			Age:                   p.Age,
			School:                p.School,
			ProgrammingExperience: p.ProgrammingExperience,
			WhyJoin:               kickedWhyJoin,
			Status:                domain.ApplicationRejected,
			RejectionReason:       reason,
			SubmittedAt:           u.CreatedAt,
			ReviewedAt:            &now,
			ReviewedBy:            &reviewer,
		}
		if err := tx.Users.Delete(ctx, u.ID); err != nil {
			return err
		}
		return tx.Applications.Create(ctx, record)
	})
	if err != nil {
		return err
	}
	s.log.Info("member kicked", zap.Int64("user_id", userID), zap.Int64("admin_id", admin.ID))
	return nil
}

// ProvisionInput describes an account to create together with its profile.
type ProvisionInput struct {
	Username              string
	Email                 string
	HashedPassword        string
	FirstName             string
	LastName              string
	Role                  domain.Role
	Age                   int
	School                string
	ProgrammingExperience string
}

// Provision creates the user and its profile in one transaction.
func (s *UserService) Provision(ctx context.Context, in ProvisionInput) (*domain.User, error) {
	var u *domain.User
	err := s.store.WithinTx(ctx, func(tx *domain.Repositories) error {
		var err error
		u, err = provision(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func provision(ctx context.Context, tx *domain.Repositories, in ProvisionInput, now time.Time) (*domain.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, fmt.Errorf("%w: username and email are required", domain.ErrInvalidInput)
	}
	u := &domain.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: in.HashedPassword,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           in.Role,
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := tx.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	p := &domain.Profile{
		UserID:                u.ID,
		Age:                   in.Age,
		School:                in.School,
		ProgrammingExperience: in.ProgrammingExperience,
		Bio:                   domain.DefaultBio,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := tx.Profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	return u, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
