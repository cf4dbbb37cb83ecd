package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
)

const userColumns = `id, COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	COALESCE(profile_image_url, ''), role, year_level, total_points, current_streak, longest_streak,
	last_practice_date, maths_difficulty, english_difficulty, maths_accuracy_recent,
	english_accuracy_recent, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db database.Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *UserRepository) WithTx(q database.Querier) *UserRepository {
	return &UserRepository{db: q}
}

// CreateUser inserts a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	if user.YearLevel == 0 {
		user.YearLevel = models.MinYearLevel
	}
	if user.MathsDifficulty == "" {
		user.MathsDifficulty = models.DifficultyMedium
	}
	if user.EnglishDifficulty == "" {
		user.EnglishDifficulty = models.DifficultyMedium
	}
	if user.MathsAccuracyRecent == 0 {
		user.MathsAccuracyRecent = 50
	}
	if user.EnglishAccuracyRecent == 0 {
		user.EnglishAccuracyRecent = 50
	}

	query := `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, role, year_level,
			maths_difficulty, english_difficulty, maths_accuracy_recent, english_accuracy_recent,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		nullString(user.Email),
		nullString(user.FirstName),
		nullString(user.LastName),
		nullString(user.ProfileImageURL),
		string(user.Role),
		user.YearLevel,
		string(user.MathsDifficulty),
		string(user.EnglishDifficulty),
		user.MathsAccuracyRecent,
		user.EnglishAccuracyRecent,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID. It returns nil, nil when no user matches.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	return r.getUser(ctx, query, id)
}

// GetUserByIDForUpdate retrieves a user and locks the row for the rest of the transaction
func (r *UserRepository) GetUserByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?" + r.db.GetDialect().LockClause()
	return r.getUser(ctx, query, id)
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE LOWER(email) = LOWER(?)"
	return r.getUser(ctx, query, email)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// DebitPoints subtracts amount from the user's balance only if the balance
// covers it. It reports false when the user is missing or short of points.
func (r *UserRepository) DebitPoints(ctx context.Context, id string, amount int) (bool, error) {
	query := `
		UPDATE users
		SET total_points = total_points - ?, updated_at = ?
		WHERE id = ? AND total_points >= ?
	`
	result, err := r.db.ExecContext(ctx, query, amount, time.Now().UTC(), id, amount)
	if err != nil {
		return false, fmt.Errorf("failed to debit points: %w", err)
	}
	return database.Affected(result)
}

// CreditPoints adds points to the user's balance
func (r *UserRepository) CreditPoints(ctx context.Context, id string, points int) (bool, error) {
	query := "UPDATE users SET total_points = total_points + ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, points, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to credit points: %w", err)
	}
	return database.Affected(result)
}

// UpdateStreak stores the streak counters and last practice time
func (r *UserRepository) UpdateStreak(ctx context.Context, id string, current, longest int, practicedAt time.Time) error {
	query := `
		UPDATE users
		SET current_streak = ?, longest_streak = ?, last_practice_date = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, current, longest, practicedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	return nil
}

// UpdateDifficulty stores the adaptive difficulty and recent accuracy for a subject
func (r *UserRepository) UpdateDifficulty(ctx context.Context, id string, subject models.Subject, difficulty models.Difficulty, accuracy int) error {
	var query string
	switch subject {
	case models.SubjectMaths:
		query = "UPDATE users SET maths_difficulty = ?, maths_accuracy_recent = ?, updated_at = ? WHERE id = ?"
	case models.SubjectEnglish:
		query = "UPDATE users SET english_difficulty = ?, english_accuracy_recent = ?, updated_at = ? WHERE id = ?"
	default:
		return fmt.Errorf("unknown subject: %s", subject)
	}

	if _, err := r.db.ExecContext(ctx, query, string(difficulty), accuracy, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update difficulty: %w", err)
	}
	return nil
}

// UpdateProfile stores profile fields that the identity provider may change
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, profile_image_url = ?, year_level = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullString(user.Email),
		nullString(user.FirstName),
		nullString(user.LastName),
		nullString(user.ProfileImageURL),
		user.YearLevel,
		time.Now().UTC(),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role, mathsDifficulty, englishDifficulty string
	var lastPractice sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.ProfileImageURL,
		&role,
		&user.YearLevel,
		&user.TotalPoints,
		&user.CurrentStreak,
		&user.LongestStreak,
		&lastPractice,
		&mathsDifficulty,
		&englishDifficulty,
		&user.MathsAccuracyRecent,
		&user.EnglishAccuracyRecent,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = models.Role(role)
	user.MathsDifficulty = models.Difficulty(mathsDifficulty)
	user.EnglishDifficulty = models.Difficulty(englishDifficulty)
	user.LastPracticeDate = timePtr(lastPractice)
	return user, nil
}
