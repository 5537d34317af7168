package model

// SyllabusResult is the structured course extracted from a syllabus or a bare course command.
type SyllabusResult struct {
	CourseName  string       `json:"course_name"`
	CourseCode  string       `json:"course_code"`
	Instructor  string       `json:"instructor"`
	Assignments []Assignment `json:"assignments"`
}

// Empty reports whether nothing usable was extracted.
func (r *SyllabusResult) Empty() bool {
	return r == nil || (r.CourseName == "" && r.CourseCode == "" && len(r.Assignments) == 0)
}

// WorkloadAnalysis is the LLM's view of how assignment hours fall across weeks.
type WorkloadAnalysis struct {
	TotalHours          Number            `json:"total_hours"`
	WeeklyBreakdown     map[string]Number `json:"weekly_breakdown"`
	RiskWeeks           []string          `json:"risk_weeks"`
	Recommendations     []string          `json:"recommendations"`
	PriorityAssignments []string          `json:"priority_assignments"`
}

// ScheduledTask is one block of study on a given day.
type ScheduledTask struct {
	Assignment string `json:"assignment"`
	Task       string `json:"task"`
	Hours      Number `json:"hours"`
	Priority   string `json:"priority"`
}

// Schedule maps YYYY-MM-DD days to study tasks.
type Schedule struct {
	DailySchedule       map[string][]ScheduledTask `json:"daily_schedule"`
	Warnings            []string                   `json:"warnings"`
	TotalScheduledHours Number                     `json:"total_scheduled_hours"`
}

// SmartNotification is an LLM-written reminder.
type SmartNotification struct {
	Message string `json:"message"`
	Urgency string `json:"urgency"` // high|medium|low
	Action  string `json:"action"`
	SendAt  string `json:"send_at"` // YYYY-MM-DD HH:MM
	Type    string `json:"type"`    // deadline|reminder|warning|celebration
}

// ActionKind is the operation requested through the assistant.
type ActionKind string

const (
	ActionAddCourse     ActionKind = "add_course"
	ActionDeleteCourse  ActionKind = "delete_course"
	ActionEditCourse    ActionKind = "edit_course"
	ActionAddAssignment ActionKind = "add_assignment"
	ActionChat          ActionKind = "chat"
)

// ActionData describes the course/assignment an action targets.
type ActionData struct {
	SyllabusText string      `json:"syllabus_text,omitempty"`
	CourseName   string      `json:"course_name,omitempty"`
	Assignment   *Assignment `json:"assignment,omitempty"`
}

// AssistantAction is either a structured request or a plain chat reply.
type AssistantAction struct {
	Action  ActionKind  `json:"action"`
	Content string      `json:"content"`
	Data    *ActionData `json:"data,omitempty"`
}
