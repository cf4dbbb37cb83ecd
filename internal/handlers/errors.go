package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/apperrors"
)

const maxBodyBytes = 64 << 10

var (
	errInvalidBody = apperrors.Validation("Invalid request data")
	errEmptyBody   = apperrors.Validation("Request body is required")
)

type errorBody struct {
	Message string `json:"message"`
}

// respondJSON writes v as the JSON response body
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondWithError maps err to a status code and writes {"message": ...}.
// Client errors are logged at warn, server errors at error with the cause.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	status := appErr.Status()
	logger := zerolog.Ctx(r.Context())

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(appErr.Message)
	} else {
		logger.Warn().Str("error", appErr.Message).Int("status", status).Msg("Request rejected")
	}

	respondJSON(w, status, errorBody{Message: appErr.Message})
}

// decodeJSON reads exactly one JSON value into dst. Unknown fields are
// ignored; trailing data after the value is rejected.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return apperrors.Wrap(apperrors.KindValidation, errInvalidBody.Message, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.Wrap(apperrors.KindValidation, errInvalidBody.Message, errors.New("unexpected data after JSON body"))
	}
	return nil
}
