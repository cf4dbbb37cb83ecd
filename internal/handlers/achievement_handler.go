package handlers

import (
	"net/http"

	"kiwilearn/internal/service"
)

// AchievementHandler serves the achievement catalog and unlocks
type AchievementHandler struct {
	achievementService *service.AchievementService
}

// NewAchievementHandler creates a new achievement handler
func NewAchievementHandler(achievementService *service.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievementService: achievementService}
}

// ListAchievements returns every achievement
func (h *AchievementHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.achievementService.ListAchievements(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, achievements)
}

// ListUserAchievements returns what the caller has unlocked
func (h *AchievementHandler) ListUserAchievements(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	unlocked, err := h.achievementService.ListUserAchievements(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, unlocked)
}
