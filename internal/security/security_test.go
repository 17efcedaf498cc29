package security

import (
	"strings"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenService_RoundTrip(t *testing.T) {
	ts := NewTokenService("secret", time.Hour)

	tok, err := ts.CreateForUser(42, "ada", "admin")
	require.NoError(t, err)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Subject)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenService_RejectsExpiredAndForeign(t *testing.T) {
	ts := NewTokenService("secret", time.Hour)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return base }

	tok, err := ts.CreateWithTTL(1, "bob", "member", time.Minute)
	require.NoError(t, err)

	ts.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = ts.Parse(tok)
	assert.Error(t, err)

	other := NewTokenService("other-secret", time.Hour)
	tok, err = other.CreateForUser(1, "bob", "member")
	require.NoError(t, err)
	_, err = NewTokenService("secret", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("some long secret"), nil)
	require.NoError(t, err)

	ct, err := enc.Encrypt("hi there")
	require.NoError(t, err)
	assert.NotEqual(t, "hi there", ct)

	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "hi there", pt)
}

func TestEncryptor_LegacyFernet(t *testing.T) {
	var k fernet.Key
	require.NoError(t, k.Generate())

	legacy, err := fernet.EncryptAndSign([]byte("old message"), &k)
	require.NoError(t, err)

	enc, err := NewEncryptor([]byte("current key"), []string{k.Encode()})
	require.NoError(t, err)

	pt, err := enc.Decrypt(string(legacy))
	require.NoError(t, err)
	assert.Equal(t, "old message", pt)
}

func TestEncryptor_RejectsGarbage(t *testing.T) {
	enc, err := NewEncryptor([]byte("k"), nil)
	require.NoError(t, err)

	_, err = enc.Decrypt("not-a-ciphertext")
	assert.Error(t, err)

	_, err = NewEncryptor(nil, nil)
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)
	hashed, err := h.Hash("s3cret")
	require.NoError(t, err)

	ok, err := h.Verify("s3cret", hashed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", hashed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("s3cret", "not-a-bcrypt-hash")
	assert.Error(t, err)

	assert.False(t, h.NeedsRehash(hashed))
	assert.True(t, NewPasswordHasher(5).NeedsRehash(hashed))
	assert.True(t, h.NeedsRehash("not-a-bcrypt-hash"))
}

func TestNewPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).cost)
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.NoError(t, CheckPasswordPolicy("Password1!"))
	assert.NoError(t, CheckPasswordPolicy("пароль12"), "length counts characters")
	assert.ErrorIs(t, CheckPasswordPolicy("short"), ErrPasswordPolicy)
	assert.ErrorIs(t, CheckPasswordPolicy(strings.Repeat("a", 73)), ErrPasswordPolicy)
}
