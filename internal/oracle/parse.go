package oracle

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"kiwilearn/internal/models"
)

const defaultFeedback = "Thanks for your answer!"

var (
	errNotJSON      = errors.New("reply is not a JSON object")
	errMissingField = errors.New("reply is missing a required field")
)

// extractJSON strips markdown code fences the model sometimes wraps around JSON
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if !gjson.Valid(s) || !gjson.Parse(s).IsObject() {
		return "", errNotJSON
	}
	return s, nil
}

func parseQuestion(raw string, req GenerateRequest) (*models.Question, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	result := gjson.Parse(body)
	question := strings.TrimSpace(result.Get("question").String())
	answer := strings.TrimSpace(result.Get("correctAnswer").String())
	if question == "" || answer == "" {
		return nil, errMissingField
	}

	q := &models.Question{
		ID:            uuid.NewString(),
		Question:      question,
		CorrectAnswer: answer,
		Type:          result.Get("type").String(),
		Topic:         result.Get("topic").String(),
		Hint:          result.Get("hint").String(),
		Explanation:   result.Get("explanation").String(),
		Difficulty:    models.Difficulty(strings.ToLower(result.Get("difficulty").String())),
		Subject:       req.Subject,
		YearLevel:     req.YearLevel,
	}
	for _, option := range result.Get("options").Array() {
		if s := strings.TrimSpace(option.String()); s != "" {
			q.Options = append(q.Options, s)
		}
	}
	if q.Topic == "" {
		q.Topic = strings.TrimSpace(req.Topic)
	}
	if !q.Difficulty.Valid() {
		q.Difficulty = req.Difficulty
	}
	if !q.Difficulty.Valid() {
		q.Difficulty = models.DifficultyMedium
	}
	return q, nil
}

func parseValidation(raw string) (*models.Validation, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	result := gjson.Parse(body)
	isCorrect := result.Get("isCorrect")
	switch {
	case isCorrect.IsBool():
	case isCorrect.Type == gjson.String && (strings.EqualFold(isCorrect.Str, "true") || strings.EqualFold(isCorrect.Str, "false")):
	default:
		return nil, errMissingField
	}

	v := &models.Validation{
		IsCorrect:   isCorrect.Bool(),
		Feedback:    strings.TrimSpace(result.Get("feedback").String()),
		Explanation: strings.TrimSpace(result.Get("explanation").String()),
	}
	if v.Feedback == "" {
		v.Feedback = defaultFeedback
	}
	return v, nil
}
