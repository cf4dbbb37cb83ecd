package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/metrics"
	"kiwilearn/internal/models"
)

// ErrUnavailable is returned when the language model cannot produce a usable reply
var ErrUnavailable = apperrors.New(apperrors.KindDependency, "Question service is unavailable")

// GenerateRequest asks for one practice question
type GenerateRequest struct {
	Subject    models.Subject
	YearLevel  int
	Topic      string
	Difficulty models.Difficulty
}

// ValidateRequest asks whether a submitted answer is acceptable
type ValidateRequest struct {
	Question      string
	CorrectAnswer string
	UserAnswer    string
	Subject       models.Subject
	YearLevel     int
}

// Oracle generates questions and judges answers
type Oracle interface {
	Generate(ctx context.Context, req GenerateRequest) (*models.Question, error)
	Validate(ctx context.Context, req ValidateRequest) (*models.Validation, error)
}

// Completer sends one prompt to a language model and returns its raw text reply
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options tunes retry behaviour
type Options struct {
	MaxAttempts int
	Timeout     time.Duration
	Backoff     time.Duration
}

// Client is an Oracle backed by a Completer. A nil completer makes every
// call fail with ErrUnavailable.
type Client struct {
	completer   Completer
	maxAttempts int
	timeout     time.Duration
	backoff     time.Duration
}

// New creates an oracle client
func New(completer Completer, opts Options) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 250 * time.Millisecond
	}
	return &Client{
		completer:   completer,
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		backoff:     opts.Backoff,
	}
}

// Generate produces a curriculum-aligned question
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*models.Question, error) {
	var question *models.Question
	err := c.call(ctx, "generate", generateSystemPrompt, generatePrompt(req), func(raw string) error {
		q, err := parseQuestion(raw, req)
		if err != nil {
			return err
		}
		question = q
		return nil
	})
	return question, err
}

// Validate judges a submitted answer
func (c *Client) Validate(ctx context.Context, req ValidateRequest) (*models.Validation, error) {
	var validation *models.Validation
	err := c.call(ctx, "validate", validateSystemPrompt, validatePrompt(req), func(raw string) error {
		v, err := parseValidation(raw)
		if err != nil {
			return err
		}
		validation = v
		return nil
	})
	return validation, err
}

// call retries both transport failures and unparseable replies, with
// exponential backoff between attempts.
func (c *Client) call(ctx context.Context, op, system, prompt string, parse func(string) error) error {
	if c.completer == nil {
		metrics.RecordOracleCall(op, 0, false)
		return fmt.Errorf("%w: no language model configured", ErrUnavailable)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff<<(attempt-2)); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}

		lastErr = c.attempt(ctx, system, prompt, parse)
		if lastErr == nil {
			metrics.RecordOracleCall(op, time.Since(start), true)
			return nil
		}
		log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).Msg("Question oracle call failed")
	}

	metrics.RecordOracleCall(op, time.Since(start), false)
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) attempt(ctx context.Context, system, prompt string, parse func(string) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.completer.Complete(callCtx, system, prompt)
	if err != nil {
		return err
	}
	return parse(raw)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
