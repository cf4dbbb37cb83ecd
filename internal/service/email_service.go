package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/models"
)

// sesSender is the subset of the SES client used to deliver mail
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service. It is disabled when fromEmail is empty.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		log.Info().Msg("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info().Str("from", fromEmail).Str("region", awsRegion).Msg("Email service enabled")
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL), nil
}

func newEmailService(client sesSender, fromEmail, fromName, appBaseURL string) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    client != nil,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendLinkRequestEmail tells a student that a parent or teacher wants to follow their progress
func (s *EmailService) SendLinkRequestEmail(ctx context.Context, student, supervisor *models.User) error {
	if !s.enabled {
		log.Debug().Str("to", student.Email).Msg("Skipping link request email (service disabled)")
		return nil
	}

	who := supervisor.DisplayName()
	subject := fmt.Sprintf("%s wants to link to your KiwiLearn account", who)
	link := s.appBaseURL + "/links"

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>Kia ora %s!</h2>
		<p>%s (your %s) would like to see how your practice is going on KiwiLearn.</p>
		<p><a href="%s" style="display: inline-block; padding: 12px 30px; background-color: #2e7d32; color: white; text-decoration: none; border-radius: 5px;">Review the request</a></p>
		<p style="font-size: 12px; color: #666;">If you don't know this person you can simply reject the request.</p>
	</div>
</body>
</html>`,
		html.EscapeString(student.DisplayName()),
		html.EscapeString(who),
		html.EscapeString(string(supervisor.Role)),
		html.EscapeString(link),
	)

	textBody := fmt.Sprintf(`Kia ora %s!

%s (your %s) would like to see how your practice is going on KiwiLearn.

Review the request: %s

If you don't know this person you can simply reject the request.`,
		student.DisplayName(), who, supervisor.Role, link)

	return s.sendEmail(ctx, student.Email, subject, htmlBody, textBody)
}

// SendLinkDecisionEmail tells a supervisor whether the student accepted their link
func (s *EmailService) SendLinkDecisionEmail(ctx context.Context, supervisor, student *models.User, status models.LinkStatus) error {
	if !s.enabled {
		log.Debug().Str("to", supervisor.Email).Msg("Skipping link decision email (service disabled)")
		return nil
	}

	verb := "accepted"
	if status == models.LinkRejected {
		verb = "declined"
	}
	subject := fmt.Sprintf("%s %s your link request", student.DisplayName(), verb)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>Kia ora %s,</h2>
		<p>%s has %s your request to link accounts on KiwiLearn.</p>
	</div>
</body>
</html>`,
		html.EscapeString(supervisor.DisplayName()),
		html.EscapeString(student.DisplayName()),
		verb,
	)
	textBody := fmt.Sprintf("Kia ora %s,\n\n%s has %s your request to link accounts on KiwiLearn.",
		supervisor.DisplayName(), student.DisplayName(), verb)

	return s.sendEmail(ctx, supervisor.Email, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	if toEmail == "" {
		return fmt.Errorf("no email address for recipient")
	}

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	event := log.Info().Str("to", toEmail).Str("subject", subject)
	if result != nil && result.MessageId != nil {
		event = event.Str("message_id", *result.MessageId)
	}
	event.Msg("Email sent")
	return nil
}
