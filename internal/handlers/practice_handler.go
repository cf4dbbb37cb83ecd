package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/models"
	"kiwilearn/internal/service"
)

const maxSessionListLimit = 100

// PracticeHandler handles practice sessions and questions
type PracticeHandler struct {
	practiceService *service.PracticeService
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(practiceService *service.PracticeService) *PracticeHandler {
	return &PracticeHandler{practiceService: practiceService}
}

type startSessionRequest struct {
	Subject   models.Subject `json:"subject"`
	YearLevel int            `json:"yearLevel"`
}

type generateQuestionRequest struct {
	Subject   models.Subject `json:"subject"`
	YearLevel int            `json:"yearLevel"`
	Topic     string         `json:"topic"`
}

type validateAnswerRequest struct {
	SessionID     string         `json:"sessionId"`
	QuestionID    string         `json:"questionId"`
	Question      string         `json:"question"`
	CorrectAnswer string         `json:"correctAnswer"`
	UserAnswer    string         `json:"userAnswer"`
	Subject       models.Subject `json:"subject"`
	Topic         string         `json:"topic"`
	Difficulty    string         `json:"difficulty"`
}

// StartSession opens a practice session
func (h *PracticeHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	session, err := h.practiceService.StartSession(r.Context(), user.ID, req.Subject, req.YearLevel)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// RecentSessions returns the caller's most recent completed sessions
func (h *PracticeHandler) RecentSessions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	sessions, err := h.practiceService.ListRecentSessions(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// AllSessions lists the caller's sessions, optionally by subject
func (h *PracticeHandler) AllSessions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	query := r.URL.Query()

	subject := models.Subject(query.Get("subject"))
	if subject != "" && !subject.Valid() {
		respondWithError(w, r, service.ErrInvalidSubject)
		return
	}

	var limit uint64
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 || n > maxSessionListLimit {
			respondWithError(w, r, apperrors.Validation("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	sessions, err := h.practiceService.ListSessions(r.Context(), user.ID, subject, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// CompleteSession closes a session and applies its rewards
func (h *PracticeHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	result, err := h.practiceService.CompleteSession(r.Context(), user.ID, chi.URLParam(r, "sessionId"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GenerateQuestion asks the question oracle for a new question
func (h *PracticeHandler) GenerateQuestion(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req generateQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	question, err := h.practiceService.GenerateQuestion(r.Context(), user.ID, service.GenerateQuestionInput{
		Subject:   req.Subject,
		YearLevel: req.YearLevel,
		Topic:     req.Topic,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, question)
}

// ValidateAnswer judges an answer and records it against the session
func (h *PracticeHandler) ValidateAnswer(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req validateAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.practiceService.RecordAnswer(r.Context(), user.ID, service.RecordAnswerInput{
		SessionID:     req.SessionID,
		QuestionID:    req.QuestionID,
		Question:      req.Question,
		CorrectAnswer: req.CorrectAnswer,
		UserAnswer:    req.UserAnswer,
		Subject:       req.Subject,
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
