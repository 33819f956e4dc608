package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
	_ "github.com/nerrad567/sentinel-core/migrations" // registers embedded migrations
)

// testSecret meets the 32-character minimum enforced by config.
var testSecret = []byte("test-secret-key-at-least-32-chars!")

// testDB creates a temporary SQLite database with the schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	return db
}

// seedTestUser inserts a test user with password "test-password" and returns it.
func seedTestUser(t *testing.T, db *database.DB, username string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// fixedClock returns a clock function that always reports t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// stubLookup is an in-memory UserLookup.
type stubLookup struct {
	users map[string]*User
	err   error
}

func (s *stubLookup) GetByID(_ context.Context, id string) (*User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func newStubLookup(users ...*User) *stubLookup {
	s := &stubLookup{users: make(map[string]*User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}
