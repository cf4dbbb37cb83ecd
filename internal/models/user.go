package models

import "time"

// Role is a user's account role
type Role string

const (
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleParent, RoleTeacher:
		return true
	}
	return false
}

// IsSupervisor reports whether the role may link to students
func (r Role) IsSupervisor() bool {
	return r == RoleParent || r == RoleTeacher
}

// User represents an account, keyed by the identity provider's subject id
type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"firstName"`
	LastName              string     `json:"lastName"`
	ProfileImageURL       string     `json:"profileImageUrl"`
	Role                  Role       `json:"role"`
	YearLevel             int        `json:"yearLevel"`
	TotalPoints           int        `json:"totalPoints"`
	CurrentStreak         int        `json:"currentStreak"`
	LongestStreak         int        `json:"longestStreak"`
	LastPracticeDate      *time.Time `json:"lastPracticeDate"`
	MathsDifficulty       Difficulty `json:"mathsDifficulty"`
	EnglishDifficulty     Difficulty `json:"englishDifficulty"`
	MathsAccuracyRecent   int        `json:"mathsAccuracyRecent"`
	EnglishAccuracyRecent int        `json:"englishAccuracyRecent"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// DifficultyFor returns the user's current difficulty for a subject
func (u *User) DifficultyFor(subject Subject) Difficulty {
	if subject == SubjectEnglish {
		return u.EnglishDifficulty
	}
	return u.MathsDifficulty
}

// DisplayName returns the best available name for the user
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Email != "":
		return u.Email
	}
	return "there"
}

// UserSummary is the public view of another user
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
	YearLevel int    `json:"yearLevel"`
}

// Identity is the verified caller extracted from a bearer token
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    Role
	Claims  map[string]interface{}
}
