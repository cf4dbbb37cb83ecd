package handlers

import (
	"net/http"

	"kiwilearn/internal/service"
)

// AuthHandler serves the signed-in user's account
type AuthHandler struct {
	userService *service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// GetUser returns the caller's profile, provisioned on first request
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, r, service.ErrUserNotFound)
		return
	}

	profile, err := h.userService.Profile(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
