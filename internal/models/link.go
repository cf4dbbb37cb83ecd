package models

import "time"

// LinkStatus is the approval state of a student link
type LinkStatus string

const (
	LinkPending  LinkStatus = "pending"
	LinkApproved LinkStatus = "approved"
	LinkRejected LinkStatus = "rejected"
)

// StudentLink associates a parent or teacher with a student account
type StudentLink struct {
	ID           string     `json:"id"`
	SupervisorID string     `json:"supervisorId"`
	StudentID    string     `json:"studentId"`
	Relationship Role       `json:"relationship"`
	Status       LinkStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// StudentLinkWithUser includes the user on the other side of the link
type StudentLinkWithUser struct {
	StudentLink
	Other UserSummary `json:"user"`
}
