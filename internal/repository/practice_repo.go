package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
)

const sessionColumns = `id, user_id, subject, year_level, questions_attempted, questions_correct,
	points_earned, started_at, completed_at`

// SessionFilter narrows a session listing
type SessionFilter struct {
	UserID    string
	Subject   models.Subject
	Completed *bool
	Limit     uint64
}

// PracticeRepository handles practice session database operations
type PracticeRepository struct {
	db database.Querier
}

// NewPracticeRepository creates a new practice repository
func NewPracticeRepository(db database.Querier) *PracticeRepository {
	return &PracticeRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PracticeRepository) WithTx(q database.Querier) *PracticeRepository {
	return &PracticeRepository{db: q}
}

// CreateSession inserts a new open session
func (r *PracticeRepository) CreateSession(ctx context.Context, session *models.PracticeSession) error {
	query := `
		INSERT INTO practice_sessions (id, user_id, subject, year_level, questions_attempted,
			questions_correct, points_earned, started_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, ?)
	`
	session.StartedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query, session.ID, session.UserID, string(session.Subject), session.YearLevel, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionByID retrieves a session. It returns nil, nil when none matches.
func (r *PracticeRepository) GetSessionByID(ctx context.Context, sessionID string) (*models.PracticeSession, error) {
	query := "SELECT " + sessionColumns + " FROM practice_sessions WHERE id = ?"
	return r.getSession(ctx, query, sessionID)
}

// GetSessionByIDForUpdate retrieves a session and locks the row
func (r *PracticeRepository) GetSessionByIDForUpdate(ctx context.Context, sessionID string) (*models.PracticeSession, error) {
	query := "SELECT " + sessionColumns + " FROM practice_sessions WHERE id = ?" + r.db.GetDialect().LockClause()
	return r.getSession(ctx, query, sessionID)
}

func (r *PracticeRepository) getSession(ctx context.Context, query, sessionID string) (*models.PracticeSession, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// RecordAnswerCounts bumps the session counters for one answer. Only open
// sessions owned by userID are touched; it reports false otherwise.
func (r *PracticeRepository) RecordAnswerCounts(ctx context.Context, sessionID, userID string, correct bool) (bool, error) {
	correctInc, points := 0, 0
	if correct {
		correctInc, points = 1, models.PointsPerCorrectAnswer
	}

	query := `
		UPDATE practice_sessions
		SET questions_attempted = questions_attempted + 1,
			questions_correct = questions_correct + ?,
			points_earned = points_earned + ?
		WHERE id = ? AND user_id = ? AND completed_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, correctInc, points, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update session counters: %w", err)
	}
	return database.Affected(result)
}

// MarkCompleted closes an open session. It reports false if the session was
// already completed or does not belong to userID.
func (r *PracticeRepository) MarkCompleted(ctx context.Context, sessionID, userID string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE practice_sessions
		SET completed_at = ?
		WHERE id = ? AND user_id = ? AND completed_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, completedAt.UTC(), sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	return database.Affected(result)
}

// InsertQuestion appends an answered question to a session
func (r *PracticeRepository) InsertQuestion(ctx context.Context, q *models.SessionQuestion) error {
	query := `
		INSERT INTO session_questions (id, session_id, question_id, question, correct_answer,
			user_answer, is_correct, feedback, topic, difficulty, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	q.AnsweredAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		q.ID,
		q.SessionID,
		q.QuestionID,
		q.Question,
		q.CorrectAnswer,
		q.UserAnswer,
		q.IsCorrect,
		q.Feedback,
		q.Topic,
		q.Difficulty,
		q.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}
	return nil
}

// GetSessionQuestions lists the answered questions of a session in answer order
func (r *PracticeRepository) GetSessionQuestions(ctx context.Context, sessionID string) ([]models.SessionQuestion, error) {
	query := `
		SELECT id, session_id, question_id, question, correct_answer, user_answer,
			is_correct, feedback, topic, difficulty, answered_at
		FROM session_questions
		WHERE session_id = ?
		ORDER BY answered_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session questions: %w", err)
	}
	defer rows.Close()

	var questions []models.SessionQuestion
	for rows.Next() {
		var q models.SessionQuestion
		if err := rows.Scan(
			&q.ID,
			&q.SessionID,
			&q.QuestionID,
			&q.Question,
			&q.CorrectAnswer,
			&q.UserAnswer,
			&q.IsCorrect,
			&q.Feedback,
			&q.Topic,
			&q.Difficulty,
			&q.AnsweredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListSessions returns sessions matching the filter, newest first
func (r *PracticeRepository) ListSessions(ctx context.Context, filter SessionFilter) ([]models.PracticeSession, error) {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select(sessionColumns).
		From("practice_sessions").
		Where(sq.Eq{"user_id": filter.UserID})

	if filter.Subject != "" {
		builder = builder.Where(sq.Eq{"subject": string(filter.Subject)})
	}
	if filter.Completed != nil {
		if *filter.Completed {
			builder = builder.Where(sq.NotEq{"completed_at": nil}).OrderBy("completed_at DESC")
		} else {
			builder = builder.Where(sq.Eq{"completed_at": nil})
		}
	}
	builder = builder.OrderBy("started_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.PracticeSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*models.PracticeSession, error) {
	session := &models.PracticeSession{}
	var subject string
	var completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&subject,
		&session.YearLevel,
		&session.QuestionsAttempted,
		&session.QuestionsCorrect,
		&session.PointsEarned,
		&session.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Subject = models.Subject(subject)
	session.CompletedAt = timePtr(completedAt)
	return session, nil
}
