package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
	"kiwilearn/internal/repository"
	"kiwilearn/internal/utils"
)

const notifyTimeout = 10 * time.Second

// LinkNotifier tells users about link requests and decisions
type LinkNotifier interface {
	SendLinkRequestEmail(ctx context.Context, student, supervisor *models.User) error
	SendLinkDecisionEmail(ctx context.Context, supervisor, student *models.User, status models.LinkStatus) error
}

// LinkService manages parent and teacher links to student accounts
type LinkService struct {
	db       *database.DB
	users    *repository.UserRepository
	links    *repository.LinkRepository
	notifier LinkNotifier
}

// NewLinkService creates a new link service. notifier may be nil.
func NewLinkService(db *database.DB, notifier LinkNotifier) *LinkService {
	return &LinkService{
		db:       db,
		users:    repository.NewUserRepository(db),
		links:    repository.NewLinkRepository(db),
		notifier: notifier,
	}
}

// RequestLink creates a pending link from a parent or teacher to the
// student with the given email.
func (s *LinkService) RequestLink(ctx context.Context, supervisorID, studentEmail string) (*models.StudentLink, error) {
	studentEmail = strings.TrimSpace(studentEmail)
	if studentEmail == "" {
		return nil, ErrStudentEmailRequired
	}

	var link *models.StudentLink
	var supervisor, student *models.User
	err := s.db.WithTransaction(ctx, func(q database.Querier) error {
		users := s.users.WithTx(q)
		links := s.links.WithTx(q)

		var err error
		supervisor, err = users.GetUserByID(ctx, supervisorID)
		if err != nil {
			return err
		}
		if supervisor == nil {
			return ErrUserNotFound
		}
		if !supervisor.Role.IsSupervisor() {
			return ErrForbidden
		}
		if err := utils.ValidateEmail(studentEmail); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, "Invalid student email", err)
		}

		student, err = users.GetUserByEmail(ctx, studentEmail)
		if err != nil {
			return err
		}
		if student == nil {
			return ErrStudentNotFound
		}
		if student.Role != models.RoleStudent {
			return ErrNotAStudent
		}

		exists, err := links.LinkExists(ctx, supervisor.ID, student.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrLinkExists
		}

		link = &models.StudentLink{
			ID:           uuid.NewString(),
			SupervisorID: supervisor.ID,
			StudentID:    student.ID,
			Relationship: supervisor.Role,
			Status:       models.LinkPending,
		}
		return links.CreateLink(ctx, link)
	})
	if err != nil {
		if s.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrLinkExists
		}
		return nil, err
	}

	log.Info().Str("supervisor_id", supervisor.ID).Str("student_id", student.ID).Msg("Student link requested")
	s.notify(ctx, "link request", func(ctx context.Context) error {
		return s.notifier.SendLinkRequestEmail(ctx, student, supervisor)
	})
	return link, nil
}

// ApproveLink accepts a pending link addressed to the student
func (s *LinkService) ApproveLink(ctx context.Context, studentID, linkID string) (*models.StudentLink, error) {
	return s.decide(ctx, studentID, linkID, models.LinkApproved)
}

// RejectLink declines a pending link addressed to the student
func (s *LinkService) RejectLink(ctx context.Context, studentID, linkID string) (*models.StudentLink, error) {
	return s.decide(ctx, studentID, linkID, models.LinkRejected)
}

func (s *LinkService) decide(ctx context.Context, studentID, linkID string, status models.LinkStatus) (*models.StudentLink, error) {
	var link *models.StudentLink
	err := s.db.WithTransaction(ctx, func(q database.Querier) error {
		links := s.links.WithTx(q)

		var err error
		link, err = links.GetLinkByID(ctx, linkID)
		if err != nil {
			return err
		}
		if link == nil || link.StudentID != studentID {
			return ErrLinkNotFound
		}

		updated, err := links.UpdateStatus(ctx, linkID, studentID, models.LinkPending, status)
		if err != nil {
			return err
		}
		if !updated {
			return ErrLinkNotPending
		}

		link, err = links.GetLinkByID(ctx, linkID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("link_id", linkID).Str("status", string(status)).Msg("Student link answered")
	s.notify(ctx, "link decision", func(ctx context.Context) error {
		supervisor, err := s.users.GetUserByID(ctx, link.SupervisorID)
		if err != nil || supervisor == nil {
			return err
		}
		student, err := s.users.GetUserByID(ctx, link.StudentID)
		if err != nil || student == nil {
			return err
		}
		return s.notifier.SendLinkDecisionEmail(ctx, supervisor, student, status)
	})
	return link, nil
}

// ListLinks returns a supervisor's students or a student's supervisors
func (s *LinkService) ListLinks(ctx context.Context, userID string) ([]models.StudentLinkWithUser, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Role.IsSupervisor() {
		return s.links.ListForSupervisor(ctx, userID)
	}
	return s.links.ListForStudent(ctx, userID)
}

// notify sends a best-effort email after the change has committed. Failures
// are logged and never fail the request.
func (s *LinkService) notify(ctx context.Context, what string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		log.Warn().Err(err).Str("email", what).Msg("Failed to send notification")
	}
}
