package models

import "time"

const (
	MinYearLevel = 1
	MaxYearLevel = 8

	// PointsPerCorrectAnswer is credited to the session for each correct answer
	PointsPerCorrectAnswer = 10
)

// Subject is a curriculum subject
type Subject string

const (
	SubjectMaths   Subject = "maths"
	SubjectEnglish Subject = "english"
)

// Valid reports whether s is a known subject
func (s Subject) Valid() bool {
	return s == SubjectMaths || s == SubjectEnglish
}

// Difficulty is the adaptive difficulty tier for a subject
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var difficultyOrder = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	return d.index() >= 0
}

func (d Difficulty) index() int {
	for i, v := range difficultyOrder {
		if v == d {
			return i
		}
	}
	return -1
}

// Harder returns the next tier up, saturating at hard
func (d Difficulty) Harder() Difficulty {
	i := d.index()
	if i < 0 {
		return DifficultyMedium
	}
	if i < len(difficultyOrder)-1 {
		i++
	}
	return difficultyOrder[i]
}

// Easier returns the next tier down, saturating at easy
func (d Difficulty) Easier() Difficulty {
	i := d.index()
	if i < 0 {
		return DifficultyMedium
	}
	if i > 0 {
		i--
	}
	return difficultyOrder[i]
}

// ValidYearLevel reports whether level is within the supported curriculum years
func ValidYearLevel(level int) bool {
	return level >= MinYearLevel && level <= MaxYearLevel
}

// PracticeSession is a run of questions for one subject. It is open until
// CompletedAt is set.
type PracticeSession struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	Subject            Subject    `json:"subject"`
	YearLevel          int        `json:"yearLevel"`
	QuestionsAttempted int        `json:"questionsAttempted"`
	QuestionsCorrect   int        `json:"questionsCorrect"`
	PointsEarned       int        `json:"pointsEarned"`
	StartedAt          time.Time  `json:"startedAt"`
	CompletedAt        *time.Time `json:"completedAt"`
}

// IsCompleted reports whether the session has been completed
func (s *PracticeSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// Accuracy returns the percentage of correct answers
func (s *PracticeSession) Accuracy() float64 {
	if s.QuestionsAttempted == 0 {
		return 0
	}
	return float64(s.QuestionsCorrect) / float64(s.QuestionsAttempted) * 100
}

// SessionQuestion is one answered question within a session
type SessionQuestion struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	QuestionID    string    `json:"questionId"`
	Question      string    `json:"question"`
	CorrectAnswer string    `json:"correctAnswer"`
	UserAnswer    string    `json:"userAnswer"`
	IsCorrect     bool      `json:"isCorrect"`
	Feedback      string    `json:"feedback"`
	Topic         string    `json:"topic"`
	Difficulty    string    `json:"difficulty"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// Question is a generated practice question
type Question struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	CorrectAnswer string     `json:"correctAnswer"`
	Type          string     `json:"type,omitempty"`
	Options       []string   `json:"options,omitempty"`
	Topic         string     `json:"topic"`
	Hint          string     `json:"hint,omitempty"`
	Explanation   string     `json:"explanation,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	Subject       Subject    `json:"subject"`
	YearLevel     int        `json:"yearLevel"`
}

// Validation is the oracle's judgement of a submitted answer
type Validation struct {
	IsCorrect   bool   `json:"isCorrect"`
	Feedback    string `json:"feedback"`
	Explanation string `json:"explanation,omitempty"`
}
