package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DeadlineLevel is the severity of a rule-based deadline alert.
type DeadlineLevel string

const (
	DeadlineOverdue  DeadlineLevel = "error"
	DeadlineSoon     DeadlineLevel = "warning"
	DeadlineUpcoming DeadlineLevel = "success"
)

// notificationNS namespaces deterministic notification IDs.
var notificationNS = uuid.MustParse("6f1c3a52-8d0e-4b7a-9a43-3f0f4a9d2c11")

// DeadlineNotification is a locally computed alert about an unfinished assignment.
type DeadlineNotification struct {
	ID         string        `json:"id"`
	Type       DeadlineLevel `json:"type"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Assignment string        `json:"assignment"`
	Course     string        `json:"course"`
	DueDate    string        `json:"due_date"`
	DaysUntil  int           `json:"days_until"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NotificationID derives a stable ID from the alert's identity.
func NotificationID(level DeadlineLevel, message, sendAt string) string {
	return uuid.NewSHA1(notificationNS, []byte(string(level)+"|"+message+"|"+sendAt)).String()
}

// DeadlineAlert classifies an assignment against now. ok is false when no alert is due:
// the assignment is done, has no parseable date, or is further out than leadDays.
func DeadlineAlert(a Assignment, now time.Time, leadDays int) (DeadlineNotification, bool) {
	if a.Done() {
		return DeadlineNotification{}, false
	}
	due, ok := a.Due()
	if !ok {
		return DeadlineNotification{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	due = time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, now.Location())
	days := int(math.Round(due.Sub(today).Hours() / 24))

	n := DeadlineNotification{
		Assignment: a.Name,
		Course:     a.Course,
		DueDate:    a.DueDate,
		DaysUntil:  days,
		Timestamp:  now,
	}
	switch {
	case days < 0:
		n.Type, n.Title = DeadlineOverdue, "Overdue"
		n.Message = fmt.Sprintf("%s (%s) was due %d days ago!", a.Name, a.Course, -days)
	case days == 0:
		n.Type, n.Title = DeadlineSoon, "Due Today"
		n.Message = fmt.Sprintf("%s (%s) is due today!", a.Name, a.Course)
	case days == 1:
		n.Type, n.Title = DeadlineSoon, "Due Tomorrow"
		n.Message = fmt.Sprintf("%s (%s) is due tomorrow!", a.Name, a.Course)
	case days <= leadDays:
		n.Type, n.Title = DeadlineUpcoming, "Upcoming"
		n.Message = fmt.Sprintf("%s (%s) is due in %d days", a.Name, a.Course, days)
	default:
		return DeadlineNotification{}, false
	}
	n.ID = NotificationID(n.Type, n.Message, a.DueDate)
	return n, true
}
