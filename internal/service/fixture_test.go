package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"clubhouse/internal/domain"
	"clubhouse/internal/security"
	"clubhouse/internal/store/sqlite"
)

func newTestStore(t *testing.T) domain.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return sqlite.NewStore(db)
}

func newTestEncryptor(t *testing.T) *security.Encryptor {
	t.Helper()
	enc, err := security.NewEncryptor([]byte("test-key"), nil)
	require.NoError(t, err)
	return enc
}

func seedUser(t *testing.T, store domain.Store, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		FirstName:      username,
		Role:           role,
		IsActive:       true,
	}
	require.NoError(t, store.Repos().Users.Create(context.Background(), u))
	return u
}
