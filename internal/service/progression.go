package service

import (
	"math"
	"time"

	"kiwilearn/internal/models"
)

const (
	// difficultyWindow is how many recent completed sessions feed the adaptive difficulty
	difficultyWindow      = 5
	minSessionsToAdapt    = 3
	promoteAccuracy       = 85
	demoteAccuracy        = 40
	neutralRecentAccuracy = 50
)

// NextStreak returns the current and longest streak after practising at now.
// Days are compared as UTC calendar days.
func NextStreak(lastPractice *time.Time, now time.Time, current, longest int) (int, int) {
	next := 1
	if lastPractice != nil {
		switch days := calendarDaysBetween(*lastPractice, now); {
		case days <= 0:
			next = current
			if next < 1 {
				next = 1
			}
		case days == 1:
			next = current + 1
		}
	}

	if next > longest {
		longest = next
	}
	return next, longest
}

func calendarDaysBetween(from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// RecentAccuracy is the rounded percentage correct across sessions, or 50
// when nothing was attempted.
func RecentAccuracy(sessions []models.PracticeSession) int {
	attempted, correct := 0, 0
	for _, s := range sessions {
		attempted += s.QuestionsAttempted
		correct += s.QuestionsCorrect
	}
	if attempted == 0 {
		return neutralRecentAccuracy
	}
	return int(math.Round(float64(correct) / float64(attempted) * 100))
}

// AdaptDifficulty moves the difficulty one step based on recent sessions
// (newest first). It reports evaluated=false when there is too little history.
func AdaptDifficulty(current models.Difficulty, recent []models.PracticeSession) (next models.Difficulty, accuracy int, evaluated bool) {
	if !current.Valid() {
		current = models.DifficultyMedium
	}
	if len(recent) > difficultyWindow {
		recent = recent[:difficultyWindow]
	}
	if len(recent) < minSessionsToAdapt {
		return current, 0, false
	}

	accuracy = RecentAccuracy(recent)
	switch {
	case accuracy >= promoteAccuracy:
		return current.Harder(), accuracy, true
	case accuracy <= demoteAccuracy:
		return current.Easier(), accuracy, true
	}
	return current, accuracy, true
}
