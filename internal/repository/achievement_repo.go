package repository

import (
	"context"
	"fmt"
	"time"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
)

// AchievementRepository handles the achievement catalog and unlocks
type AchievementRepository struct {
	db database.Querier
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(db database.Querier) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *AchievementRepository) WithTx(q database.Querier) *AchievementRepository {
	return &AchievementRepository{db: q}
}

// ListAchievements returns the full catalog ordered by category and requirement
func (r *AchievementRepository) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	query := `
		SELECT id, name, description, icon, category, requirement, created_at
		FROM achievements
		ORDER BY category, requirement
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	achievements := []models.Achievement{}
	for rows.Next() {
		var a models.Achievement
		var category string
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &category, &a.Requirement, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Category = models.AchievementCategory(category)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// ListUserAchievements returns a user's unlocked achievements, newest first
func (r *AchievementRepository) ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	query := `
		SELECT ua.id, ua.user_id, ua.achievement_id, ua.unlocked_at,
			a.id, a.name, a.description, a.icon, a.category, a.requirement, a.created_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ?
		ORDER BY ua.unlocked_at DESC, a.requirement DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	defer rows.Close()

	unlocked := []models.UserAchievement{}
	for rows.Next() {
		var ua models.UserAchievement
		var category string
		if err := rows.Scan(
			&ua.ID,
			&ua.UserID,
			&ua.AchievementID,
			&ua.UnlockedAt,
			&ua.Achievement.ID,
			&ua.Achievement.Name,
			&ua.Achievement.Description,
			&ua.Achievement.Icon,
			&category,
			&ua.Achievement.Requirement,
			&ua.Achievement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		ua.Achievement.Category = models.AchievementCategory(category)
		unlocked = append(unlocked, ua)
	}
	return unlocked, rows.Err()
}

// UnlockedIDs returns the set of achievement IDs the user already holds
func (r *AchievementRepository) UnlockedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT achievement_id FROM user_achievements WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked achievements: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Unlock records that the user earned an achievement
func (r *AchievementRepository) Unlock(ctx context.Context, ua *models.UserAchievement) error {
	ua.UnlockedAt = time.Now().UTC()
	query := "INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at) VALUES (?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, ua.ID, ua.UserID, ua.AchievementID, ua.UnlockedAt); err != nil {
		return fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return nil
}
