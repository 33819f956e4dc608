package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// MinPasswordLength is the shortest password accepted for a new account.
const MinPasswordLength = 8

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleStaff can read the resource inventory.
	RoleStaff Role = "staff"

	// RoleManager can additionally create and edit resources and record access events.
	RoleManager Role = "manager"

	// RoleSecurityAdmin has full control: users, resource deletion, the access log
	// and the live event feed.
	RoleSecurityAdmin Role = "security-admin"
)

// ValidRoles is the closed set of roles a user account may hold.
var ValidRoles = []Role{RoleStaff, RoleManager, RoleSecurityAdmin}

// legacyRoles maps role names from earlier deployments onto the current set.
var legacyRoles = map[string]Role{
	"funcionario":     RoleStaff,
	"gerente":         RoleManager,
	"admin_seguranca": RoleSecurityAdmin,
}

// IsValidUserRole returns true if the role is a valid role for a user account.
func IsValidUserRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole normalises a role name, accepting legacy aliases.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if r := Role(name); IsValidUserRole(r) {
		return r, nil
	}
	if r, ok := legacyRoles[name]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// User represents an account held in the credential store.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"nome"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the verified identity attached to a request.
// It is a detached copy of what the token asserted, not a store handle.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already in use")
	ErrInvalidRole        = errors.New("invalid role")
	ErrMissingToken       = errors.New("missing bearer token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrPrincipalNotFound  = errors.New("principal no longer exists")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfModification   = errors.New("cannot modify own account in this way")
)
