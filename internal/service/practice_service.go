package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/database"
	"kiwilearn/internal/metrics"
	"kiwilearn/internal/models"
	"kiwilearn/internal/oracle"
	"kiwilearn/internal/repository"
	"kiwilearn/internal/utils"
)

// RecentSessionLimit is how many completed sessions the recent listing returns
const RecentSessionLimit = 5

// GenerateQuestionInput asks for a question for the caller
type GenerateQuestionInput struct {
	Subject   models.Subject
	YearLevel int
	Topic     string
}

// RecordAnswerInput is one submitted answer
type RecordAnswerInput struct {
	SessionID     string
	QuestionID    string
	Question      string
	CorrectAnswer string
	UserAnswer    string
	Subject       models.Subject
	Topic         string
	Difficulty    string
}

// AnswerResult is the outcome of a recorded answer
type AnswerResult struct {
	IsCorrect     bool                    `json:"isCorrect"`
	Feedback      string                  `json:"feedback"`
	Explanation   string                  `json:"explanation,omitempty"`
	PointsAwarded int                     `json:"pointsAwarded"`
	Session       *models.PracticeSession `json:"session"`
}

// CompletionResult is the outcome of completing a session
type CompletionResult struct {
	Message              string                  `json:"message"`
	PointsEarned         int                     `json:"pointsEarned"`
	Session              *models.PracticeSession `json:"session"`
	User                 *models.User            `json:"user"`
	Pet                  *models.Pet             `json:"pet"`
	UnlockedAchievements []models.Achievement    `json:"unlockedAchievements"`
}

// PracticeService runs the practice session lifecycle
type PracticeService struct {
	db           *database.DB
	users        *repository.UserRepository
	practice     *repository.PracticeRepository
	pets         *repository.PetRepository
	achievements *AchievementService
	oracle       oracle.Oracle
}

// NewPracticeService creates a new practice service
func NewPracticeService(db *database.DB, questionOracle oracle.Oracle, achievements *AchievementService) *PracticeService {
	return &PracticeService{
		db:           db,
		users:        repository.NewUserRepository(db),
		practice:     repository.NewPracticeRepository(db),
		pets:         repository.NewPetRepository(db),
		achievements: achievements,
		oracle:       questionOracle,
	}
}

func validateSubjectAndLevel(subject models.Subject, yearLevel int) error {
	if !subject.Valid() {
		return ErrInvalidSubject
	}
	if !models.ValidYearLevel(yearLevel) {
		return ErrInvalidYearLevel
	}
	return nil
}

// StartSession opens a new session with zero counters
func (s *PracticeService) StartSession(ctx context.Context, userID string, subject models.Subject, yearLevel int) (*models.PracticeSession, error) {
	if err := validateSubjectAndLevel(subject, yearLevel); err != nil {
		return nil, err
	}

	session := &models.PracticeSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		YearLevel: yearLevel,
	}
	if err := s.practice.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.Debug().Str("user_id", userID).Str("session_id", session.ID).Str("subject", string(subject)).Msg("Practice session started")
	return session, nil
}

// ListRecentSessions returns the user's latest completed sessions
func (s *PracticeService) ListRecentSessions(ctx context.Context, userID string) ([]models.PracticeSession, error) {
	completed := true
	return s.practice.ListSessions(ctx, repository.SessionFilter{
		UserID:    userID,
		Completed: &completed,
		Limit:     RecentSessionLimit,
	})
}

// ListSessions returns all of the user's sessions, optionally for one subject
func (s *PracticeService) ListSessions(ctx context.Context, userID string, subject models.Subject, limit uint64) ([]models.PracticeSession, error) {
	if subject != "" && !subject.Valid() {
		return nil, ErrInvalidSubject
	}
	return s.practice.ListSessions(ctx, repository.SessionFilter{
		UserID:  userID,
		Subject: subject,
		Limit:   limit,
	})
}

// GenerateQuestion asks the oracle for a question at the user's current difficulty
func (s *PracticeService) GenerateQuestion(ctx context.Context, userID string, in GenerateQuestionInput) (*models.Question, error) {
	if err := validateSubjectAndLevel(in.Subject, in.YearLevel); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(in.Topic)
	if err := utils.ValidateLength("topic", topic, utils.MaxTopicLength); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "Topic is too long", err)
	}

	difficulty := models.DifficultyMedium
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.DifficultyFor(in.Subject).Valid() {
		difficulty = user.DifficultyFor(in.Subject)
	}

	return s.oracle.Generate(ctx, oracle.GenerateRequest{
		Subject:    in.Subject,
		YearLevel:  in.YearLevel,
		Topic:      topic,
		Difficulty: difficulty,
	})
}

// RecordAnswer judges an answer with the oracle, then appends it to the
// session and bumps the counters in one transaction.
func (s *PracticeService) RecordAnswer(ctx context.Context, userID string, in RecordAnswerInput) (*AnswerResult, error) {
	if in.SessionID == "" || in.QuestionID == "" || strings.TrimSpace(in.Question) == "" ||
		strings.TrimSpace(in.CorrectAnswer) == "" || strings.TrimSpace(in.UserAnswer) == "" || in.Subject == "" {
		return nil, ErrMissingFields
	}
	if !in.Subject.Valid() {
		return nil, ErrInvalidSubject
	}
	if err := utils.ValidateLength("userAnswer", in.UserAnswer, utils.MaxAnswerLength); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "Answer is too long", err)
	}

	session, err := s.ownedSession(ctx, s.practice, userID, in.SessionID, false)
	if err != nil {
		return nil, err
	}

	// The oracle call stays outside the transaction.
	verdict, err := s.oracle.Validate(ctx, oracle.ValidateRequest{
		Question:      in.Question,
		CorrectAnswer: in.CorrectAnswer,
		UserAnswer:    in.UserAnswer,
		Subject:       in.Subject,
		YearLevel:     session.YearLevel,
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(q database.Querier) error {
		practice := s.practice.WithTx(q)
		updated, err := practice.RecordAnswerCounts(ctx, in.SessionID, userID, verdict.IsCorrect)
		if err != nil {
			return err
		}
		if !updated {
			// Completed while the oracle was thinking.
			return ErrAlreadyCompleted
		}

		if err := practice.InsertQuestion(ctx, &models.SessionQuestion{
			ID:            uuid.NewString(),
			SessionID:     in.SessionID,
			QuestionID:    in.QuestionID,
			Question:      in.Question,
			CorrectAnswer: in.CorrectAnswer,
			UserAnswer:    in.UserAnswer,
			IsCorrect:     verdict.IsCorrect,
			Feedback:      verdict.Feedback,
			Topic:         in.Topic,
			Difficulty:    in.Difficulty,
		}); err != nil {
			return err
		}

		session, err = practice.GetSessionByID(ctx, in.SessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordAnswer(verdict.IsCorrect)
	result := &AnswerResult{
		IsCorrect:   verdict.IsCorrect,
		Feedback:    verdict.Feedback,
		Explanation: verdict.Explanation,
		Session:     session,
	}
	if verdict.IsCorrect {
		result.PointsAwarded = models.PointsPerCorrectAnswer
	}
	return result, nil
}

// CompleteSession closes the session and, atomically, credits the user's
// points, streak and difficulty, the pet's experience, and any newly
// earned achievements.
func (s *PracticeService) CompleteSession(ctx context.Context, userID, sessionID string) (*CompletionResult, error) {
	if sessionID == "" {
		return nil, ErrMissingFields
	}

	result := &CompletionResult{Message: "Session completed successfully"}
	err := s.db.WithTransaction(ctx, func(q database.Querier) error {
		practice := s.practice.WithTx(q)
		users := s.users.WithTx(q)
		pets := s.pets.WithTx(q)

		session, err := s.ownedSession(ctx, practice, userID, sessionID, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		closed, err := practice.MarkCompleted(ctx, sessionID, userID, now)
		if err != nil {
			return err
		}
		if !closed {
			return ErrAlreadyCompleted
		}
		session.CompletedAt = &now

		user, err := users.GetUserByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		points := session.PointsEarned
		if points > 0 {
			if _, err := users.CreditPoints(ctx, userID, points); err != nil {
				return err
			}
		}
		current, longest := NextStreak(user.LastPracticeDate, now, user.CurrentStreak, user.LongestStreak)
		if err := users.UpdateStreak(ctx, userID, current, longest, now); err != nil {
			return err
		}

		pet, err := pets.GetPetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if pet != nil && points > 0 {
			pet.Experience += points
			pet.Level = models.LevelForExperience(pet.Experience)
			if err := pets.UpdateExperience(ctx, pet.ID, pet.Experience, pet.Level); err != nil {
				return err
			}
		}

		if err := s.adaptDifficulty(ctx, practice, users, user, session.Subject); err != nil {
			return err
		}

		user, err = users.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		unlocked, err := s.achievements.evaluateTx(ctx, q, user)
		if err != nil {
			return err
		}

		result.PointsEarned = points
		result.Session = session
		result.User = user
		result.Pet = pet
		result.UnlockedAchievements = unlocked
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSessionCompleted(string(result.Session.Subject))
	metrics.RecordAchievementsUnlocked(len(result.UnlockedAchievements))
	log.Info().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Int("points", result.PointsEarned).
		Int("streak", result.User.CurrentStreak).
		Msg("Practice session completed")
	return result, nil
}

func (s *PracticeService) adaptDifficulty(ctx context.Context, practice *repository.PracticeRepository, users *repository.UserRepository, user *models.User, subject models.Subject) error {
	completed := true
	recent, err := practice.ListSessions(ctx, repository.SessionFilter{
		UserID:    user.ID,
		Subject:   subject,
		Completed: &completed,
		Limit:     difficultyWindow,
	})
	if err != nil {
		return err
	}

	next, accuracy, evaluated := AdaptDifficulty(user.DifficultyFor(subject), recent)
	if !evaluated {
		return nil
	}
	if next != user.DifficultyFor(subject) {
		log.Info().Str("user_id", user.ID).Str("subject", string(subject)).Str("difficulty", string(next)).Int("accuracy", accuracy).Msg("Difficulty adjusted")
	}
	return users.UpdateDifficulty(ctx, user.ID, subject, next, accuracy)
}

// ownedSession loads a session the caller owns. Sessions of other users are
// reported as missing.
func (s *PracticeService) ownedSession(ctx context.Context, practice *repository.PracticeRepository, userID, sessionID string, lock bool) (*models.PracticeSession, error) {
	var session *models.PracticeSession
	var err error
	if lock {
		session, err = practice.GetSessionByIDForUpdate(ctx, sessionID)
	} else {
		session, err = practice.GetSessionByID(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if session.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}
	return session, nil
}
