package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
)

// NewTestDB creates a file-backed SQLite database in a temp dir with all
// migrations applied and the achievement catalog seeded. A file is used
// rather than :memory: so concurrent connections share one database.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "kiwilearn_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { MustClose(t, db) })

	require.NoError(t, db.RunMigrations(context.Background()))
	_, err = db.SeedAchievements(context.Background())
	require.NoError(t, err)

	return db
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// InsertUser creates a user row with the given role and points
func InsertUser(t *testing.T, db *database.DB, id, email string, role models.Role, points int) *models.User {
	t.Helper()
	ctx := context.Background()

	user := &models.User{ID: id, Email: email, FirstName: "Test", Role: role}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, role, total_points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, sql.NullString{String: email, Valid: email != ""}, user.FirstName, string(role), points)
	require.NoError(t, err)

	user.TotalPoints = points
	return user
}

// UserPoints reads a user's current balance
func UserPoints(t *testing.T, db *database.DB, id string) int {
	t.Helper()
	var points int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT total_points FROM users WHERE id = ?", id).Scan(&points))
	return points
}
