package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"coursesync/internal/domain"
)

// NewID returns a time-ordered identifier for courses and assignments.
func NewID() string { return ulid.Make().String() }

// AssignmentType is the coarse kind of coursework.
type AssignmentType string

const (
	AssignmentQuiz         AssignmentType = "quiz"
	AssignmentHomework     AssignmentType = "homework"
	AssignmentProject      AssignmentType = "project"
	AssignmentExam         AssignmentType = "exam"
	AssignmentPresentation AssignmentType = "presentation"
)

// defaultHours are the effort estimates used when a syllabus gives none.
var defaultHours = map[AssignmentType]float64{
	AssignmentQuiz:         2,
	AssignmentHomework:     5,
	AssignmentProject:      20,
	AssignmentExam:         8,
	AssignmentPresentation: 10,
}

// DefaultHours returns the estimated effort for an assignment type, or 0 for unknown types.
func DefaultHours(t AssignmentType) float64 {
	return defaultHours[AssignmentType(strings.ToLower(strings.TrimSpace(string(t))))]
}

// DateLayout is the calendar date format used for due dates.
const DateLayout = "2006-01-02"

// Assignment is one graded item of a course.
type Assignment struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           AssignmentType `json:"type"`
	DueDate        string         `json:"due_date"`
	Weight         Number         `json:"weight"`
	EstimatedHours Number         `json:"estimated_hours"`
	Description    string         `json:"description"`
	Course         string         `json:"course"`
	CourseCode     string         `json:"course_code"`
	Progress       int            `json:"progress"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Due parses DueDate. ok is false when the date is missing or malformed.
func (a *Assignment) Due() (time.Time, bool) {
	if a.DueDate == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, a.DueDate, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (a *Assignment) Done() bool { return a.Progress >= 100 }

// SetProgress clamps p to [0,100] and maintains CompletedAt.
func (a *Assignment) SetProgress(p int, now time.Time) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	old := a.Progress
	a.Progress = p
	switch {
	case p == 100 && old < 100:
		t := now
		a.CompletedAt = &t
	case p < 100:
		a.CompletedAt = nil
	}
}

// AttachTo stamps the assignment with its owning course and fills defaults.
func (a *Assignment) AttachTo(c *Course) {
	if a.ID == "" {
		a.ID = NewID()
	}
	a.Course = c.CourseName
	a.CourseCode = c.CourseCode
	if a.Type == "" {
		a.Type = AssignmentHomework
	}
	if a.EstimatedHours <= 0 {
		a.EstimatedHours = Number(DefaultHours(a.Type))
	}
	if a.Progress < 0 || a.Progress > 100 {
		a.SetProgress(a.Progress, time.Now())
	}
}

// Course is a tracked course. Assignments are stored on State and joined by course name.
type Course struct {
	ID         string    `json:"id"`
	CourseName string    `json:"course_name"`
	CourseCode string    `json:"course_code"`
	Instructor string    `json:"instructor,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCourse validates and constructs a course. Either name or code is required;
// a missing name falls back to the code.
func NewCourse(name, code, instructor string) (*Course, error) {
	name, code = strings.TrimSpace(name), strings.TrimSpace(code)
	if name == "" && code == "" {
		return nil, domain.ErrInvalidArgument
	}
	if name == "" {
		name = code
	}
	return &Course{
		ID:         NewID(),
		CourseName: name,
		CourseCode: code,
		Instructor: strings.TrimSpace(instructor),
		CreatedAt:  time.Now(),
	}, nil
}

// Matches reports whether target (lower-cased) is a substring of the course name or code.
func (c *Course) Matches(target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.CourseName), target) ||
		strings.Contains(strings.ToLower(c.CourseCode), target)
}

// MatchesExact reports a case-insensitive equality on name or code.
func (c *Course) MatchesExact(target string) bool {
	target = strings.TrimSpace(target)
	return strings.EqualFold(c.CourseName, target) || strings.EqualFold(c.CourseCode, target)
}
