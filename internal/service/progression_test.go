package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kiwilearn/internal/models"
)

func TestNextStreak(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	at := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name        string
		last        *time.Time
		current     int
		longest     int
		wantCurrent int
		wantLongest int
	}{
		{"first practice", nil, 0, 0, 1, 1},
		{"same day keeps streak", at(now.Add(-3 * time.Hour)), 4, 6, 4, 6},
		{"same day with zero streak", at(now.Add(-time.Hour)), 0, 0, 1, 1},
		{"yesterday late evening", at(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)), 4, 4, 5, 5},
		{"two days ago resets", at(now.AddDate(0, 0, -2)), 9, 9, 1, 9},
		{"clock skew into the future", at(now.Add(24 * time.Hour)), 3, 3, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, longest := NextStreak(tt.last, now, tt.current, tt.longest)
			assert.Equal(t, tt.wantCurrent, current)
			assert.Equal(t, tt.wantLongest, longest)
		})
	}
}

func TestAdaptDifficulty(t *testing.T) {
	sessions := func(pairs ...[2]int) []models.PracticeSession {
		out := make([]models.PracticeSession, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, models.PracticeSession{QuestionsAttempted: p[0], QuestionsCorrect: p[1]})
		}
		return out
	}

	tests := []struct {
		name         string
		current      models.Difficulty
		recent       []models.PracticeSession
		want         models.Difficulty
		wantAccuracy int
		wantEvaluated  bool
	}{
		{"too few sessions", models.DifficultyMedium, sessions([2]int{10, 10}, [2]int{10, 10}), models.DifficultyMedium, 0, false},
		{"strong promotes", models.DifficultyMedium, sessions([2]int{10, 9}, [2]int{10, 9}, [2]int{10, 8}), models.DifficultyHard, 87, true},
		{"hard stays hard", models.DifficultyHard, sessions([2]int{5, 5}, [2]int{5, 5}, [2]int{5, 5}), models.DifficultyHard, 100, true},
		{"weak demotes", models.DifficultyMedium, sessions([2]int{10, 4}, [2]int{10, 3}, [2]int{10, 5}), models.DifficultyEasy, 40, true},
		{"middling holds", models.DifficultyEasy, sessions([2]int{10, 6}, [2]int{10, 7}, [2]int{10, 6}), models.DifficultyEasy, 63, true},
		{"nothing attempted is neutral", models.DifficultyMedium, sessions([2]int{0, 0}, [2]int{0, 0}, [2]int{0, 0}), models.DifficultyMedium, 50, true},
		{"only newest five count", models.DifficultyMedium, sessions([2]int{1, 1}, [2]int{1, 1}, [2]int{1, 1}, [2]int{1, 1}, [2]int{1, 1}, [2]int{100, 0}), models.DifficultyHard, 100, true},
		{"unknown difficulty treated as medium", models.Difficulty(""), sessions([2]int{1, 1}, [2]int{1, 1}, [2]int{1, 1}), models.DifficultyHard, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, accuracy, evaluated := AdaptDifficulty(tt.current, tt.recent)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAccuracy, accuracy)
			assert.Equal(t, tt.wantEvaluated, evaluated)
		})
	}
}
