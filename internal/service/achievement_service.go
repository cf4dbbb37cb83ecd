package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
	"kiwilearn/internal/repository"
)

// AchievementService lists the catalog and unlocks earned achievements
type AchievementService struct {
	db           *database.DB
	achievements *repository.AchievementRepository
	users        *repository.UserRepository
}

// NewAchievementService creates a new achievement service
func NewAchievementService(db *database.DB) *AchievementService {
	return &AchievementService{
		db:           db,
		achievements: repository.NewAchievementRepository(db),
		users:        repository.NewUserRepository(db),
	}
}

// ListAchievements returns the full catalog
func (s *AchievementService) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	return s.achievements.ListAchievements(ctx)
}

// ListUserAchievements returns what the user has unlocked
func (s *AchievementService) ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	return s.achievements.ListUserAchievements(ctx, userID)
}

// Evaluate unlocks anything the user has earned but not yet received
func (s *AchievementService) Evaluate(ctx context.Context, userID string) ([]models.Achievement, error) {
	var unlocked []models.Achievement
	err := s.db.WithTransaction(ctx, func(q database.Querier) error {
		user, err := s.users.WithTx(q).GetUserByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		unlocked, err = s.evaluateTx(ctx, q, user)
		return err
	})
	return unlocked, err
}

// evaluateTx runs inside the caller's transaction. Already unlocked entries
// are skipped up front because a failed insert would abort a postgres
// transaction.
func (s *AchievementService) evaluateTx(ctx context.Context, q database.Querier, user *models.User) ([]models.Achievement, error) {
	repo := s.achievements.WithTx(q)

	catalog, err := repo.ListAchievements(ctx)
	if err != nil {
		return nil, err
	}
	held, err := repo.UnlockedIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	unlocked := []models.Achievement{}
	for _, achievement := range catalog {
		if held[achievement.ID] || !achievement.EarnedBy(user) {
			continue
		}
		ua := &models.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        user.ID,
			AchievementID: achievement.ID,
		}
		if err := repo.Unlock(ctx, ua); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, achievement)
		log.Info().Str("user_id", user.ID).Str("achievement", achievement.Name).Msg("Achievement unlocked")
	}
	return unlocked, nil
}
