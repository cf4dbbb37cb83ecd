package service

import (
	"context"
	"sync"

	"kiwilearn/internal/models"
	"kiwilearn/internal/oracle"
)

// fakeOracle judges answers by exact match unless told to fail
type fakeOracle struct {
	mu        sync.Mutex
	err       error
	generated []oracle.GenerateRequest
	validated []oracle.ValidateRequest
}

func (f *fakeOracle) Generate(ctx context.Context, req oracle.GenerateRequest) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Question{
		ID:            "q-generated",
		Question:      "What is 2 + 2?",
		CorrectAnswer: "4",
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
		Subject:       req.Subject,
		YearLevel:     req.YearLevel,
	}, nil
}

func (f *fakeOracle) Validate(ctx context.Context, req oracle.ValidateRequest) (*models.Validation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, req)
	if f.err != nil {
		return nil, f.err
	}
	if req.UserAnswer == req.CorrectAnswer {
		return &models.Validation{IsCorrect: true, Feedback: "Ka pai!"}, nil
	}
	return &models.Validation{IsCorrect: false, Feedback: "Nearly there."}, nil
}

type sentEmail struct {
	to      string
	kind    string
	status  models.LinkStatus
	subject string
}

// recordingNotifier captures notifications instead of sending them
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (n *recordingNotifier) SendLinkRequestEmail(ctx context.Context, student, supervisor *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEmail{to: student.Email, kind: "request", subject: supervisor.ID})
	return n.err
}

func (n *recordingNotifier) SendLinkDecisionEmail(ctx context.Context, supervisor, student *models.User, status models.LinkStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEmail{to: supervisor.Email, kind: "decision", status: status, subject: student.ID})
	return n.err
}
