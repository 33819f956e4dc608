package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when an Issuer is built with a non-positive TTL.
const DefaultTokenTTL = time.Hour

// Claims is the signed payload of a Sentinel bearer token.
// The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Issuer signs time-limited bearer tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. An empty secret is a configuration error.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed token for user. The role is captured now; later role
// changes do not affect tokens already issued.
func (i *Issuer) Issue(user *User) (token string, expiresAt time.Time, err error) {
	// JWT NumericDate has second precision.
	now := i.now().UTC().Truncate(time.Second)
	expiresAt = now.Add(i.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
		Role:     user.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// UserLookup is the slice of the credential store the Verifier needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// Verifier validates bearer tokens and recovers the principal they carry.
type Verifier struct {
	secret []byte
	users  UserLookup
	now    func() time.Time
}

// NewVerifier creates a Verifier over the same secret the Issuer signs with.
func NewVerifier(secret []byte, users UserLookup) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret must not be empty")
	}
	if users == nil {
		return nil, errors.New("user lookup is required")
	}
	return &Verifier{
		secret: secret,
		users:  users,
		now:    time.Now,
	}, nil
}

// Verify checks the token's signature, expiry and claims, then confirms the
// principal still exists.
//
// Errors:
//   - ErrTokenInvalid: bad signature, wrong algorithm, malformed token or claims
//   - ErrTokenExpired: signature valid but exp <= now
//   - ErrPrincipalNotFound: the subject has been deleted
//   - anything else: the store failed during the existence check
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	claims := &Claims{}

	// Signature and algorithm first, so a forged token is never reported as expired.
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	validator := jwt.NewValidator(
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err := validator.Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !IsValidUserRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	if _, err := v.users.GetByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("checking principal: %w", err)
	}

	return &Principal{
		ID:       claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
