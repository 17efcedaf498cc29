package security

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password a member may choose, in characters.
const MinPasswordLength = 8

// bcrypt rejects longer input.
const maxPasswordBytes = 72

// ErrPasswordPolicy wraps every password rejected by CheckPasswordPolicy.
var ErrPasswordPolicy = errors.New("password policy")

// CheckPasswordPolicy reports whether plain is acceptable as a new password.
func CheckPasswordPolicy(plain string) error {
	switch {
	case utf8.RuneCountInString(plain) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrPasswordPolicy, MinPasswordLength)
	case len(plain) > maxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrPasswordPolicy, maxPasswordBytes)
	}
	return nil
}

// PasswordHasher hashes member passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher clamps cost into the range bcrypt accepts. Zero selects
// bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plain matches hashed. A stored hash bcrypt cannot
// parse is an error, not a mismatch.
func (h *PasswordHasher) Verify(plain, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	}
	return false, fmt.Errorf("compare password: %w", err)
}

// NeedsRehash reports whether hashed was made at a different cost than h uses.
func (h *PasswordHasher) NeedsRehash(hashed string) bool {
	cost, err := bcrypt.Cost([]byte(hashed))
	return err != nil || cost != h.cost
}
