package auth

import (
	"context"
	"slices"
	"strings"
)

// RoleSet is the set of roles admitted to an operation.
// An empty set admits any authenticated principal.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Allows reports whether role is admitted by the set.
func (s RoleSet) Allows(role Role) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[role]
	return ok
}

// Roles returns the members in a stable order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	slices.Sort(roles)
	return roles
}

// TokenVerifier recovers a principal from a bearer token.
// *Verifier is the production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Guard admits or rejects requests for protected operations.
type Guard struct {
	verifier TokenVerifier
}

// NewGuard creates a Guard that delegates token checks to verifier.
func NewGuard(verifier TokenVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Admit authenticates the Authorization header value and checks the
// principal's role against required.
//
// Verifier errors are returned unchanged. A principal whose role is not in a
// non-empty required set gets ErrForbidden.
func (g *Guard) Admit(ctx context.Context, authorization string, required RoleSet) (*Principal, error) {
	token, err := ExtractBearerToken(authorization)
	if err != nil {
		return nil, err
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if !required.Allows(principal.Role) {
		return nil, ErrForbidden
	}

	return principal, nil
}

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>"
// value. The scheme is matched case-insensitively.
func ExtractBearerToken(authorization string) (string, error) {
	const prefix = "bearer "

	value := strings.TrimSpace(authorization)
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(value[len(prefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
