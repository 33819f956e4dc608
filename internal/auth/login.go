package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// UsernameLookup is the slice of the credential store the Authenticator needs.
type UsernameLookup interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Authenticator runs the username/password login flow.
type Authenticator struct {
	users  UsernameLookup
	issuer *Issuer

	// dummyHash is verified when the username is unknown so both failure
	// paths cost one Argon2id computation.
	dummyHash string
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UsernameLookup, issuer *Issuer) (*Authenticator, error) {
	if users == nil || issuer == nil {
		return nil, errors.New("user lookup and issuer are required")
	}

	raw := make([]byte, 16) //nolint:mnd // throwaway password length
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating dummy password: %w", err)
	}
	dummy, err := HashPassword(hex.EncodeToString(raw))
	if err != nil {
		return nil, fmt.Errorf("hashing dummy password: %w", err)
	}

	return &Authenticator{users: users, issuer: issuer, dummyHash: dummy}, nil
}

// Login verifies a username and password and issues a token.
//
// An unknown username and a wrong password both return ErrInvalidCredentials.
// Store failures are returned wrapped and must be reported as internal errors.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(password, a.dummyHash) //nolint:errcheck // timing equalisation only
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		// A corrupt stored hash is indistinguishable from a wrong password to the caller.
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := a.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
