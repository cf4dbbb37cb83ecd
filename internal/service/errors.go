package service

import (
	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/oracle"
)

// Errors returned by the services. Handlers map them to HTTP statuses
// through their apperrors kind.
var (
	ErrUserNotFound     = apperrors.NotFound("User not found")
	ErrInvalidSubject   = apperrors.Validation("Invalid subject. Must be 'maths' or 'english'")
	ErrInvalidYearLevel = apperrors.Validation("Invalid year level. Must be between 1 and 8")
	ErrMissingFields    = apperrors.Validation("Missing required fields")

	ErrSessionNotFound  = apperrors.NotFound("Session not found")
	ErrAlreadyCompleted = apperrors.New(apperrors.KindBusinessRule, "Session already completed")

	ErrInvalidPetType     = apperrors.Validation("Invalid pet type. Must be one of: cat, dog, dragon, robot, owl, fox")
	ErrInvalidName        = apperrors.Validation("Pet name is required")
	ErrPetAlreadyExists   = apperrors.New(apperrors.KindBusinessRule, "User already has a pet")
	ErrNoPetFound         = apperrors.NotFound("No pet found")
	ErrInsufficientPoints = apperrors.New(apperrors.KindBusinessRule, "Not enough points to feed pet")

	ErrStudentEmailRequired = apperrors.Validation("Student email is required")
	ErrForbidden            = apperrors.New(apperrors.KindForbidden, "Only parents and teachers can link to students")
	ErrStudentNotFound      = apperrors.NotFound("Student not found")
	ErrNotAStudent          = apperrors.New(apperrors.KindBusinessRule, "User is not a student")
	ErrLinkExists           = apperrors.New(apperrors.KindBusinessRule, "Link already exists")
	ErrLinkNotFound         = apperrors.NotFound("Link not found")
	ErrLinkNotPending       = apperrors.New(apperrors.KindBusinessRule, "Link request has already been answered")

	ErrQuestionOracleUnavailable = oracle.ErrUnavailable
)
