package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/domain"
	"clubhouse/internal/security"
	"clubhouse/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return nil
}

func (m *MockUserRepo) Delete(ctx context.Context, id int64) error {
	return nil
}

func (m *MockUserRepo) SetOnlineStatus(ctx context.Context, userID int64, isOnline bool) error {
	args := m.Called(ctx, userID, isOnline)
	return args.Error(0)
}

func TestLogin(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)
	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)
		user := &domain.User{ID: 7, Username: "alice", HashedPassword: hashed, Role: domain.RoleMember, IsActive: true}
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(user, nil)
		mockRepo.On("SetOnlineStatus", mock.Anything, int64(7), true).Return(nil)

		res, err := svc.Login(context.Background(), service.LoginInput{Username: " alice ", Password: "Password1!"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", res.TokenType)
		assert.True(t, res.User.IsOnline)

		claims, err := tokenSvc.Parse(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, int64(7), claims.UserID)
		assert.Equal(t, "member", claims.Role)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)
		user := &domain.User{ID: 7, Username: "alice", HashedPassword: hashed, IsActive: true}
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

		res, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "nope"})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		mockRepo.AssertNotCalled(t, "SetOnlineStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UpgradesHashCost", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		stronger := security.NewPasswordHasher(5)
		svc := service.NewAuthService(mockRepo, tokenSvc, stronger)
		user := &domain.User{ID: 7, Username: "alice", HashedPassword: hashed, IsActive: true}
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(user, nil)
		mockRepo.On("SetOnlineStatus", mock.Anything, int64(7), true).Return(nil)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "Password1!"})
		require.NoError(t, err)
		assert.NotEqual(t, hashed, user.HashedPassword)
		assert.False(t, stronger.NeedsRehash(user.HashedPassword))
	})

	t.Run("CorruptHash", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)
		user := &domain.User{ID: 7, Username: "alice", HashedPassword: "garbage", IsActive: true}
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "Password1!"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)
		mockRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "ghost", Password: "whatever"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Inactive", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher)
		user := &domain.User{ID: 9, Username: "bob", HashedPassword: hashed, IsActive: false}
		mockRepo.On("GetByUsername", mock.Anything, "bob").Return(user, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "bob", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("MissingFields", func(t *testing.T) {
		svc := service.NewAuthService(new(MockUserRepo), tokenSvc, hasher)
		_, err := svc.Login(context.Background(), service.LoginInput{Username: "alice"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestAuthenticate(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	mockRepo := new(MockUserRepo)
	svc := service.NewAuthService(mockRepo, tokenSvc, security.NewPasswordHasher(4))

	user := &domain.User{ID: 3, Username: "carol", Role: domain.RoleAdmin, IsActive: true}
	mockRepo.On("GetByUsername", mock.Anything, "carol").Return(user, nil)

	token, err := tokenSvc.CreateForUser(3, "carol", "admin")
	require.NoError(t, err)

	got, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = svc.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	stale, err := tokenSvc.CreateForUser(99, "carol", "admin")
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), stale)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
