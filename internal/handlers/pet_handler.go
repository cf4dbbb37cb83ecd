package handlers

import (
	"net/http"

	"kiwilearn/internal/models"
	"kiwilearn/internal/service"
)

// PetHandler handles the caller's virtual pet
type PetHandler struct {
	petService *service.PetService
}

// NewPetHandler creates a new pet handler
func NewPetHandler(petService *service.PetService) *PetHandler {
	return &PetHandler{petService: petService}
}

type adoptPetRequest struct {
	Name string         `json:"name"`
	Type models.PetType `json:"type"`
}

// GetPet returns the caller's pet, or null before adoption
func (h *PetHandler) GetPet(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	pet, err := h.petService.GetPet(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pet)
}

// AdoptPet creates the caller's pet
func (h *PetHandler) AdoptPet(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req adoptPetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	pet, err := h.petService.AdoptPet(r.Context(), user.ID, req.Name, req.Type)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, pet)
}

// FeedPet spends points on the caller's pet
func (h *PetHandler) FeedPet(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	pet, err := h.petService.FeedPet(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pet)
}
