package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/auth"
)

func requestWithLogger(buf *bytes.Buffer) *http.Request {
	logger := zerolog.New(buf)
	req := httptest.NewRequest(http.MethodGet, "/api/pets", nil)
	return req.WithContext(logger.WithContext(req.Context()))
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"auth", auth.ErrInvalidToken, http.StatusUnauthorized, `{"message":"Invalid or expired token"}`},
		{"validation", apperrors.Validation("Invalid subject"), http.StatusBadRequest, `{"message":"Invalid subject"}`},
		{"not found", apperrors.NotFound("Session not found"), http.StatusNotFound, `{"message":"Session not found"}`},
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError, `{"message":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondWithError(recorder, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, recorder.Body.String())
		})
	}
}

func TestRespondWithErrorLogsCauseForServerErrors(t *testing.T) {
	var buf bytes.Buffer
	recorder := httptest.NewRecorder()

	respondWithError(recorder, requestWithLogger(&buf), errors.New("boom"))

	logOutput := buf.String()
	assert.Contains(t, logOutput, `"level":"error"`)
	assert.Contains(t, logOutput, "boom")
	assert.NotContains(t, recorder.Body.String(), "boom")
}

func TestRespondWithErrorLogsClientErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	respondWithError(httptest.NewRecorder(), requestWithLogger(&buf), apperrors.Validation("Invalid subject"))

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "Invalid subject")
}

func TestDecodeJSON(t *testing.T) {
	var dst startSessionRequest

	err := decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"subject":"maths","yearLevel":4}`)), &dst)
	require.NoError(t, err)
	assert.Equal(t, 4, dst.YearLevel)

	err = decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"yearLevel":"four"}`)), &dst)
	assert.ErrorIs(t, err, errInvalidBody)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	err = decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dst)
	assert.ErrorIs(t, err, errEmptyBody)

	err = decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"subject":"maths","extra":true}`+"\n")), &dst)
	require.NoError(t, err)
	assert.Equal(t, "maths", string(dst.Subject))

	for _, body := range []string{`{"yearLevel":4}{"yearLevel":5}`, `{"yearLevel":4} trailing`, `{"yearLevel":4}}`} {
		err = decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dst)
		assert.ErrorIs(t, err, errInvalidBody, body)
	}
}
