// Package auth provides authentication and authorisation for Sentinel Core.
//
// It implements a three-role model (staff → manager → security-admin) with:
//   - Argon2id password hashing with a fresh salt per hash
//   - HS256 bearer tokens carrying the principal's id, username and role
//   - A single Guard that every protected operation passes through
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Request flow:
//
//	Authorization header → Guard.Admit → Verifier.Verify → handler (principal attached)
//
// Login flow:
//
//	Authenticator.Login → UserRepository.GetByUsername → VerifyPassword → Issuer.Issue
//
// Accepted risk: the role is captured when a token is issued and is not
// re-read on each request. The Verifier only checks that the principal still
// exists. A security-admin who is demoted keeps security-admin rights until
// their current token expires, which is bounded by the configured TTL.
// Deleted principals are rejected immediately.
package auth
