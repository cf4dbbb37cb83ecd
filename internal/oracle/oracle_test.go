package oracle

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiwilearn/internal/models"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   atomic.Int32
	prompts []string
}

func (s *scriptedCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	i := int(s.calls.Add(1)) - 1
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func fastOptions(attempts int) Options {
	return Options{MaxAttempts: attempts, Timeout: time.Second, Backoff: time.Millisecond}
}

func TestGenerateParsesReply(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"```json\n" + `{
		"question": "What is 6 x 7?",
		"correctAnswer": 42,
		"type": "multiple-choice",
		"options": ["36", "42", "48"],
		"topic": "multiplication",
		"hint": "Think of 6 groups of 7",
		"explanation": "6 x 7 = 42",
		"difficulty": "HARD"
	}` + "\n```"}}
	client := New(completer, fastOptions(2))

	q, err := client.Generate(context.Background(), GenerateRequest{
		Subject:    models.SubjectMaths,
		YearLevel:  5,
		Topic:      "multiplication",
		Difficulty: models.DifficultyHard,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "What is 6 x 7?", q.Question)
	assert.Equal(t, "42", q.CorrectAnswer)
	assert.Equal(t, []string{"36", "42", "48"}, q.Options)
	assert.Equal(t, models.DifficultyHard, q.Difficulty)
	assert.Equal(t, models.SubjectMaths, q.Subject)
	assert.Equal(t, 5, q.YearLevel)

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "New Zealand Year 5 student")
	assert.Contains(t, completer.prompts[0], "Topic: multiplication")
	assert.Contains(t, completer.prompts[0], "multi-step thinking")
}

func TestGenerateDefaultsDifficulty(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{`{"question": "Spell 'cat'", "correctAnswer": "cat"}`}}
	client := New(completer, fastOptions(1))

	q, err := client.Generate(context.Background(), GenerateRequest{Subject: models.SubjectEnglish, YearLevel: 1, Topic: "spelling"})
	require.NoError(t, err)
	assert.Equal(t, models.DifficultyMedium, q.Difficulty)
	assert.Equal(t, "spelling", q.Topic)
}

func TestRetriesThenSucceeds(t *testing.T) {
	completer := &scriptedCompleter{
		errs:    []error{errors.New("503 from upstream")},
		replies: []string{"", `{"isCorrect": true, "feedback": "Ka pai!"}`},
	}
	client := New(completer, fastOptions(2))

	v, err := client.Validate(context.Background(), ValidateRequest{Question: "2+2", CorrectAnswer: "4", UserAnswer: "4", Subject: models.SubjectMaths})
	require.NoError(t, err)
	assert.True(t, v.IsCorrect)
	assert.Equal(t, "Ka pai!", v.Feedback)
	assert.Equal(t, int32(2), completer.calls.Load())
}

func TestUnparseableReplyIsUnavailable(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"I think so!", `{"feedback": "no verdict"}`}}
	client := New(completer, fastOptions(2))

	_, err := client.Validate(context.Background(), ValidateRequest{Question: "2+2", CorrectAnswer: "4", UserAnswer: "5"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), completer.calls.Load())
}

func TestNilCompleterIsUnavailable(t *testing.T) {
	client := New(nil, fastOptions(3))

	_, err := client.Generate(context.Background(), GenerateRequest{Subject: models.SubjectMaths, YearLevel: 3})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNilGeminiIsUnavailable(t *testing.T) {
	var g *Gemini
	client := New(g, fastOptions(1))

	_, err := client.Generate(context.Background(), GenerateRequest{Subject: models.SubjectMaths, YearLevel: 3})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	client := New(completer, Options{MaxAttempts: 3, Timeout: time.Second, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Validate(ctx, ValidateRequest{Question: "q", CorrectAnswer: "a", UserAnswer: "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), completer.calls.Load())
}

func TestParseValidationAcceptsStringBool(t *testing.T) {
	v, err := parseValidation(`{"isCorrect": "TRUE", "feedback": "  Great  "}`)
	require.NoError(t, err)
	assert.True(t, v.IsCorrect)
	assert.Equal(t, "Great", v.Feedback)

	v, err = parseValidation(`{"isCorrect": false}`)
	require.NoError(t, err)
	assert.False(t, v.IsCorrect)
	assert.Equal(t, defaultFeedback, v.Feedback)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain", `{"a": 1}`, false},
		{"fenced", "```json\n{\"a\": 1}\n```", false},
		{"prose around", `Sure! {"a": 1} Hope that helps.`, false},
		{"array", `[1, 2]`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, "{"))
		})
	}
}
