package oracle

import (
	"fmt"
	"strings"

	"kiwilearn/internal/models"
)

const generateSystemPrompt = "You are an expert New Zealand primary school teacher creating engaging practice questions. Respond with JSON only."

const validateSystemPrompt = "You are a supportive New Zealand primary school teacher providing feedback to students. Be encouraging and positive. Respond with JSON only."

func generatePrompt(req GenerateRequest) string {
	difficulty := req.Difficulty
	if !difficulty.Valid() {
		difficulty = models.DifficultyMedium
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a single %s practice question for a New Zealand Year %d student.\n", req.Subject, req.YearLevel)
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", topic)
	}
	fmt.Fprintf(&b, "Difficulty Level: %s - %s\n", difficulty, difficultyGuidance(difficulty))
	fmt.Fprintf(&b, `
Requirements:
- Aligned with New Zealand curriculum for Year %d
- Age-appropriate and engaging for children
- Clear and concise question
- Definitive correct answer

Return a JSON object with:
{
  "question": "the practice question",
  "correctAnswer": "the correct answer",
  "type": "short-answer" or "multiple-choice",
  "options": ["only for multiple-choice"],
  "topic": "specific topic (e.g., 'addition', 'reading comprehension')",
  "hint": "a gentle hint",
  "explanation": "a short explanation of the answer",
  "difficulty": "%s"
}`, req.YearLevel, difficulty)
	return b.String()
}

func difficultyGuidance(d models.Difficulty) string {
	switch d {
	case models.DifficultyEasy:
		return "Make this question easier than typical for this year level. Use simple vocabulary and straightforward concepts."
	case models.DifficultyHard:
		return "Make this question more challenging than typical for this year level. Include multi-step thinking or advanced concepts."
	default:
		return "Make this question at a typical difficulty level for this year."
	}
}

func validatePrompt(req ValidateRequest) string {
	student := "A New Zealand student"
	if models.ValidYearLevel(req.YearLevel) {
		student = fmt.Sprintf("A New Zealand Year %d student", req.YearLevel)
	}

	return fmt.Sprintf(`%s answered a %s question.

Question: %s
Correct Answer: %s
Student's Answer: %s

Provide:
1. Whether the answer is correct (be lenient with minor spelling/formatting differences)
2. Encouraging, child-friendly feedback (1-2 sentences)
   - If correct: Praise and explain why it's right
   - If incorrect: Be encouraging, explain the concept gently

Return JSON:
{
  "isCorrect": true/false,
  "feedback": "encouraging message",
  "explanation": "one sentence explaining the correct answer"
}`, student, req.Subject, req.Question, req.CorrectAnswer, req.UserAnswer)
}
