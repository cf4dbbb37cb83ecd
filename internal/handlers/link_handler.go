package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kiwilearn/internal/service"
)

// LinkHandler handles parent and teacher links to students
type LinkHandler struct {
	linkService *service.LinkService
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(linkService *service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

type createLinkRequest struct {
	StudentEmail string `json:"studentEmail"`
}

// CreateLink asks a student to accept the caller as a parent or teacher
func (h *LinkHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	link, err := h.linkService.RequestLink(r.Context(), user.ID, req.StudentEmail)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

// ListLinks returns the caller's links
func (h *LinkHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	links, err := h.linkService.ListLinks(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, links)
}

// ApproveLink accepts a pending link addressed to the caller
func (h *LinkHandler) ApproveLink(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	link, err := h.linkService.ApproveLink(r.Context(), user.ID, chi.URLParam(r, "linkId"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

// RejectLink declines a pending link addressed to the caller
func (h *LinkHandler) RejectLink(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	link, err := h.linkService.RejectLink(r.Context(), user.ID, chi.URLParam(r, "linkId"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}
