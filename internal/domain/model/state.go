package model

import "time"

// State is the whole persisted tracker document.
type State struct {
	Timestamp         time.Time    `json:"timestamp"`
	Courses           []Course     `json:"courses"`
	Assignments       []Assignment `json:"assignments"`
	Settings          Settings     `json:"settings"`
	SentNotifications []string     `json:"sent_notifications"`
}

// NewState returns an empty state with the given settings.
func NewState(settings Settings) *State {
	return &State{
		Courses:           []Course{},
		Assignments:       []Assignment{},
		Settings:          settings,
		SentNotifications: []string{},
	}
}

// Clone returns a deep copy suitable for handing out of a locked section.
func (s *State) Clone() *State {
	cp := *s
	cp.Courses = append([]Course(nil), s.Courses...)
	cp.Assignments = make([]Assignment, len(s.Assignments))
	for i, a := range s.Assignments {
		if a.CompletedAt != nil {
			t := *a.CompletedAt
			a.CompletedAt = &t
		}
		cp.Assignments[i] = a
	}
	cp.SentNotifications = append([]string(nil), s.SentNotifications...)
	return &cp
}

// AssignmentsFor returns the assignments belonging to a course.
func (s *State) AssignmentsFor(courseName string) []Assignment {
	out := []Assignment{}
	for _, a := range s.Assignments {
		if a.Course == courseName {
			out = append(out, a)
		}
	}
	return out
}

// RemoveCourse drops the course at index i and its assignments.
func (s *State) RemoveCourse(i int) Course {
	c := s.Courses[i]
	s.Courses = append(s.Courses[:i], s.Courses[i+1:]...)
	kept := s.Assignments[:0]
	for _, a := range s.Assignments {
		if a.Course != c.CourseName {
			kept = append(kept, a)
		}
	}
	s.Assignments = kept
	return c
}

// CourseView is a course joined with its assignments and completion percent.
type CourseView struct {
	Course
	Progress    int          `json:"progress"`
	Assignments []Assignment `json:"assignments"`
}

// Stats summarises the tracker.
type Stats struct {
	TotalCourses         int `json:"total_courses"`
	TotalAssignments     int `json:"total_assignments"`
	CompletedAssignments int `json:"completed_assignments"`
	PendingAssignments   int `json:"pending_assignments"`
}

// Snapshot is the read model served to clients.
type Snapshot struct {
	Courses     []CourseView `json:"courses"`
	Assignments []Assignment `json:"assignments"`
	Settings    Settings     `json:"settings"`
	Stats       Stats        `json:"stats"`
}

// Snapshot builds the read model.
func (s *State) Snapshot() Snapshot {
	out := Snapshot{
		Courses:     make([]CourseView, 0, len(s.Courses)),
		Assignments: append([]Assignment{}, s.Assignments...),
		Settings:    s.Settings,
	}
	for _, c := range s.Courses {
		as := s.AssignmentsFor(c.CourseName)
		progress := 0
		if len(as) > 0 {
			done := 0
			for _, a := range as {
				if a.Done() {
					done++
				}
			}
			progress = int(float64(done)/float64(len(as))*100 + 0.5)
		}
		out.Courses = append(out.Courses, CourseView{Course: c, Progress: progress, Assignments: as})
	}
	for _, a := range s.Assignments {
		if a.Done() {
			out.Stats.CompletedAssignments++
		} else {
			out.Stats.PendingAssignments++
		}
	}
	out.Stats.TotalCourses = len(s.Courses)
	out.Stats.TotalAssignments = len(s.Assignments)
	return out
}
