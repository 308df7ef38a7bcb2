package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// defaultInviteCost is the bcrypt work factor for invite codes.
const defaultInviteCost = 12

// ErrInviteMismatch is returned by Verify when the code does not match.
var ErrInviteMismatch = errors.New("auth: invite code does not match")

// InviteCodes issues project invite codes and checks them.
//
// Only the bcrypt hash is persisted; the plaintext code is handed to the
// project owner once and shared out of band. The cost is a field so tests can
// use bcrypt.MinCost.
type InviteCodes struct {
	cost int
}

// NewInviteCodes uses the default cost (12).
func NewInviteCodes() *InviteCodes {
	return &InviteCodes{cost: defaultInviteCost}
}

// NewInviteCodesWithCost is for tests in other packages. Do NOT use a low
// cost in production.
func NewInviteCodesWithCost(cost int) *InviteCodes {
	return &InviteCodes{cost: cost}
}

// Generate returns a fresh random code and its hash.
func (c *InviteCodes) Generate() (code, hash string, err error) {
	code = uuid.NewString()
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), c.cost)
	if err != nil {
		return "", "", fmt.Errorf("auth: hashing invite code: %w", err)
	}
	return code, string(hashed), nil
}

// Verify compares code against hash in constant time. An empty hash never
// matches.
func (c *InviteCodes) Verify(hash, code string) error {
	if hash == "" || code == "" {
		return ErrInviteMismatch
	}
	// bcrypt ignores input past 72 bytes; codes we issue are 36.
	if len(code) > 72 {
		return ErrInviteMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInviteMismatch
		}
		return fmt.Errorf("auth: comparing invite code hash: %w", err)
	}
	return nil
}
