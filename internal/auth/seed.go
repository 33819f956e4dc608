package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// SeedPasswordLogKey is the log attribute carrying a generated admin password.
const SeedPasswordLogKey = "initial_password"

// seedPasswordBytes is the number of random bytes for generated passwords.
const seedPasswordBytes = 16

// SeededAccount describes an account created by a seed function.
type SeededAccount struct {
	Username string
	Role     Role
	Password string
}

// DefaultAccounts are the accounts created by SeedDefaults.
var DefaultAccounts = []struct {
	Username    string
	DisplayName string
	Role        Role
}{
	{"admin", "Security Administrator", RoleSecurityAdmin},
	{"manager", "Resource Manager", RoleManager},
	{"staff", "Staff Member", RoleStaff},
}

// SeedAdmin creates the initial security-admin account on first boot if no users exist.
// The generated password is logged once and must be changed immediately.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, userRepo UserRepository, logger *slog.Logger) (string, error) {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	admin := DefaultAccounts[0]
	password, err := createSeedUser(ctx, userRepo, admin.Username, admin.DisplayName, admin.Role)
	if err != nil {
		return "", err
	}

	// Logged under its own key: the logging handler redacts "password".
	logger.Warn("seed admin account created",
		"username", admin.Username,
		SeedPasswordLogKey, password,
		"action_required", "change this password immediately",
	)

	return password, nil
}

// SeedDefaults creates the DefaultAccounts that do not exist yet, each with a
// random password. Existing usernames are left untouched.
func SeedDefaults(ctx context.Context, userRepo UserRepository, logger *slog.Logger) ([]SeededAccount, error) {
	var created []SeededAccount

	for _, acct := range DefaultAccounts {
		_, err := userRepo.GetByUsername(ctx, acct.Username)
		if err == nil {
			logger.Info("account exists, skipping", "username", acct.Username)
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, fmt.Errorf("checking %s: %w", acct.Username, err)
		}

		password, err := createSeedUser(ctx, userRepo, acct.Username, acct.DisplayName, acct.Role)
		if err != nil {
			return created, err
		}

		logger.Info("account created", "username", acct.Username, "role", acct.Role)
		created = append(created, SeededAccount{Username: acct.Username, Role: acct.Role, Password: password})
	}

	return created, nil
}

// createSeedUser stores a user with a freshly generated password and returns it.
func createSeedUser(ctx context.Context, userRepo UserRepository, username, displayName string, role Role) (string, error) {
	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	user := &User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return "", fmt.Errorf("creating seed user %s: %w", username, err)
	}

	return password, nil
}
