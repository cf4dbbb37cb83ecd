package database

import (
	"context"
	"fmt"
	"time"

	"kiwilearn/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AchievementCatalog is the built-in set of achievements
var AchievementCatalog = []models.Achievement{
	{Name: "First Steps", Description: "Complete your first practice session", Icon: "🌟", Category: models.CategoryPractice, Requirement: 10},
	{Name: "Quick Learner", Description: "Earn 50 points", Icon: "⚡", Category: models.CategoryPractice, Requirement: 50},
	{Name: "Rising Star", Description: "Earn 100 points", Icon: "⭐", Category: models.CategoryPractice, Requirement: 100},
	{Name: "Super Student", Description: "Earn 250 points", Icon: "💫", Category: models.CategoryPractice, Requirement: 250},
	{Name: "Champion Learner", Description: "Earn 500 points", Icon: "👑", Category: models.CategoryPractice, Requirement: 500},
	{Name: "On Fire!", Description: "Practice for 3 days in a row", Icon: "🔥", Category: models.CategoryStreak, Requirement: 3},
	{Name: "Week Warrior", Description: "Practice for 7 days in a row", Icon: "💪", Category: models.CategoryStreak, Requirement: 7},
	{Name: "Dedication Master", Description: "Practice for 14 days in a row", Icon: "🎯", Category: models.CategoryStreak, Requirement: 14},
}

// SeedAchievements inserts any catalog achievements that are missing and
// returns how many were added
func (db *DB) SeedAchievements(ctx context.Context) (int, error) {
	added := 0
	err := db.WithTransaction(ctx, func(q Querier) error {
		for _, a := range AchievementCatalog {
			var count int
			if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM achievements WHERE name = ?", a.Name).Scan(&count); err != nil {
				return fmt.Errorf("failed to check achievement %q: %w", a.Name, err)
			}
			if count > 0 {
				continue
			}

			_, err := q.ExecContext(ctx, `
				INSERT INTO achievements (id, name, description, icon, category, requirement, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, uuid.NewString(), a.Name, a.Description, a.Icon, string(a.Category), a.Requirement, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("failed to insert achievement %q: %w", a.Name, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if added > 0 {
		log.Info().Int("added", added).Msg("achievement catalog seeded")
	} else {
		log.Debug().Msg("achievement catalog already populated")
	}
	return added, nil
}
