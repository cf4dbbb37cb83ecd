package models

import "time"

// AchievementCategory decides which user counter an achievement tracks
type AchievementCategory string

const (
	// CategoryPractice achievements compare against total points
	CategoryPractice AchievementCategory = "practice"
	// CategoryStreak achievements compare against the current streak
	CategoryStreak AchievementCategory = "streak"
)

// Achievement is a catalog entry
type Achievement struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Category    AchievementCategory `json:"category"`
	Requirement int                 `json:"requirement"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// EarnedBy reports whether the user's counters satisfy the achievement
func (a *Achievement) EarnedBy(u *User) bool {
	switch a.Category {
	case CategoryStreak:
		return u.CurrentStreak >= a.Requirement
	case CategoryPractice:
		return u.TotalPoints >= a.Requirement
	}
	return false
}

// UserAchievement is an unlocked achievement with its catalog details
type UserAchievement struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	AchievementID string      `json:"achievementId"`
	UnlockedAt    time.Time   `json:"unlockedAt"`
	Achievement   Achievement `json:"achievement"`
}
