// ABOUTME: In-memory user directory for the development auth server
// ABOUTME: Hashes configured passwords with bcrypt and checks credentials

package backend

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-signin/internal/config"
)

// Credential check errors.
var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrWrongPassword = errors.New("wrong password")
	ErrResetRequired = errors.New("password reset required")
)

type user struct {
	email         string
	name          string
	hash          []byte
	resetRequired bool
}

type directory struct {
	users map[string]*user
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newDirectory(cfgs []config.UserConfig, cost int) (*directory, error) {
	d := &directory{users: make(map[string]*user, len(cfgs))}
	for _, uc := range cfgs {
		hash := []byte(uc.PasswordHash)
		if len(hash) == 0 {
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(uc.Password), cost)
			if err != nil {
				return nil, fmt.Errorf("hashing password for %s: %w", uc.Email, err)
			}
		}
		d.users[normalizeEmail(uc.Email)] = &user{
			email:         normalizeEmail(uc.Email),
			name:          uc.Name,
			hash:          hash,
			resetRequired: uc.ResetRequired,
		}
	}
	return d, nil
}

func (d *directory) lookup(email string) (*user, bool) {
	u, ok := d.users[normalizeEmail(email)]
	return u, ok
}

// check verifies a password. A user flagged for reset is reported only after
// the password matches.
func (d *directory) check(email, password string) (*user, error) {
	u, ok := d.lookup(email)
	if !ok {
		return nil, ErrUnknownUser
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	if u.resetRequired {
		return u, ErrResetRequired
	}
	return u, nil
}
