package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubhouse/internal/domain"
	"clubhouse/internal/security"
)

// AuthService handles login and logout.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher

	// RememberMeTTL is the token lifetime for remember-me logins. Zero uses
	// the default lifetime.
	RememberMeTTL time.Duration
}

func NewAuthService(users domain.UserRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
	}
}

type LoginInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

var errBadCredentials = fmt.Errorf("%w: incorrect username or password", domain.ErrUnauthorized)

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user account is inactive", domain.ErrUnauthorized)
	}

	ok, err := s.hash.Verify(in.Password, user.HashedPassword)
	if err != nil {
		return nil, fmt.Errorf("verify password of %s: %w", user.Username, err)
	}
	if !ok {
		return nil, errBadCredentials
	}
	if s.hash.NeedsRehash(user.HashedPassword) {
		hashed, err := s.hash.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = hashed
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("rehash password: %w", err)
		}
	}

	if err := s.users.SetOnlineStatus(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("set online: %w", err)
	}
	user.IsOnline = true

	var token string
	if in.RememberMe && s.RememberMeTTL > 0 {
		token, err = s.tokens.CreateWithTTL(user.ID, user.Username, string(user.Role), s.RememberMeTTL)
	} else {
		token, err = s.tokens.CreateForUser(user.ID, user.Username, string(user.Role))
	}
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	return s.users.SetOnlineStatus(ctx, userID, false)
}

// Authenticate resolves the user behind an access token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || user.ID != claims.UserID {
		return nil, fmt.Errorf("%w: user is inactive", domain.ErrUnauthorized)
	}
	return user, nil
}
