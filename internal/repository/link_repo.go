package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
)

const linkColumns = `l.id, l.supervisor_id, l.student_id, l.relationship, l.status, l.created_at, l.updated_at`

// LinkRepository handles supervisor to student links
type LinkRepository struct {
	db database.Querier
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db database.Querier) *LinkRepository {
	return &LinkRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *LinkRepository) WithTx(q database.Querier) *LinkRepository {
	return &LinkRepository{db: q}
}

// CreateLink inserts a new link
func (r *LinkRepository) CreateLink(ctx context.Context, link *models.StudentLink) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO student_links (id, supervisor_id, student_id, relationship, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		link.ID,
		link.SupervisorID,
		link.StudentID,
		string(link.Relationship),
		string(link.Status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	link.CreatedAt = now
	link.UpdatedAt = now
	return nil
}

// GetLinkByID retrieves a link. It returns nil, nil when none matches.
func (r *LinkRepository) GetLinkByID(ctx context.Context, id string) (*models.StudentLink, error) {
	query := "SELECT " + linkColumns + " FROM student_links l WHERE l.id = ?"
	link, err := scanLink(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// LinkExists reports whether the supervisor is already linked to the student
func (r *LinkRepository) LinkExists(ctx context.Context, supervisorID, studentID string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM student_links WHERE supervisor_id = ? AND student_id = ?"
	if err := r.db.QueryRowContext(ctx, query, supervisorID, studentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check link: %w", err)
	}
	return count > 0, nil
}

// UpdateStatus moves a link out of from into to, only if the link belongs to
// studentID and is still in from. It reports whether a row changed.
func (r *LinkRepository) UpdateStatus(ctx context.Context, id, studentID string, from, to models.LinkStatus) (bool, error) {
	query := `
		UPDATE student_links
		SET status = ?, updated_at = ?
		WHERE id = ? AND student_id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query, string(to), time.Now().UTC(), id, studentID, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update link: %w", err)
	}
	return database.Affected(result)
}

// ListForSupervisor returns a supervisor's links with the linked students
func (r *LinkRepository) ListForSupervisor(ctx context.Context, supervisorID string) ([]models.StudentLinkWithUser, error) {
	query := "SELECT " + linkColumns + `,
			u.id, COALESCE(u.email, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), u.role, u.year_level
		FROM student_links l
		JOIN users u ON u.id = l.student_id
		WHERE l.supervisor_id = ?
		ORDER BY l.created_at DESC`
	return r.listWithUser(ctx, query, supervisorID)
}

// ListForStudent returns a student's links with the linked supervisors
func (r *LinkRepository) ListForStudent(ctx context.Context, studentID string) ([]models.StudentLinkWithUser, error) {
	query := "SELECT " + linkColumns + `,
			u.id, COALESCE(u.email, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), u.role, u.year_level
		FROM student_links l
		JOIN users u ON u.id = l.supervisor_id
		WHERE l.student_id = ?
		ORDER BY l.created_at DESC`
	return r.listWithUser(ctx, query, studentID)
}

func (r *LinkRepository) listWithUser(ctx context.Context, query, userID string) ([]models.StudentLinkWithUser, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []models.StudentLinkWithUser{}
	for rows.Next() {
		var l models.StudentLinkWithUser
		var relationship, status, role string
		if err := rows.Scan(
			&l.ID,
			&l.SupervisorID,
			&l.StudentID,
			&relationship,
			&status,
			&l.CreatedAt,
			&l.UpdatedAt,
			&l.Other.ID,
			&l.Other.Email,
			&l.Other.FirstName,
			&l.Other.LastName,
			&role,
			&l.Other.YearLevel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.Relationship = models.Role(relationship)
		l.Status = models.LinkStatus(status)
		l.Other.Role = models.Role(role)
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanLink(row rowScanner) (*models.StudentLink, error) {
	link := &models.StudentLink{}
	var relationship, status string

	err := row.Scan(
		&link.ID,
		&link.SupervisorID,
		&link.StudentID,
		&relationship,
		&status,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.Relationship = models.Role(relationship)
	link.Status = models.LinkStatus(status)
	return link, nil
}
