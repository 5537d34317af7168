// File: internal/usecase/planner_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/llmjson"
	"coursesync/internal/infra/logging"
	"coursesync/internal/infra/metrics"
)

// Compile-time check
var _ PlannerUseCase = (*plannerUC)(nil)

// PlannerUseCase renders one fixed prompt per task, sends it to the LLM and
// decodes the JSON answer. Completion errors are returned unchanged; an
// answer that cannot be decoded yields an empty result and is only logged.
type PlannerUseCase interface {
	ParseSyllabus(ctx context.Context, text, semesterStart string) (*model.SyllabusResult, error)
	AnalyzeWorkload(ctx context.Context, assignments []model.Assignment) (*model.WorkloadAnalysis, error)
	OptimizeSchedule(ctx context.Context, assignments []model.Assignment, hoursPerDay int) (*model.Schedule, error)
	GenerateNotifications(ctx context.Context, schedule *model.Schedule, assignments []model.Assignment) ([]model.SmartNotification, error)
	Assist(ctx context.Context, question string, courses []model.Course, assignments []model.Assignment) (*model.AssistantAction, error)
}

const (
	tempSyllabus      = 0.3
	tempWorkload      = 0.3
	tempSchedule      = 0.5
	tempNotifications = 0.7
	tempAssistant     = 0.7

	rawPreviewLen = 200
)

type plannerUC struct {
	ai        adapter.Completer
	maxTokens int
	now       func() time.Time
	log       *zerolog.Logger
}

// PlannerOption customises the planner.
type PlannerOption func(*plannerUC)

// WithPlannerClock replaces time.Now for the "current date" in prompts.
func WithPlannerClock(now func() time.Time) PlannerOption {
	return func(p *plannerUC) { p.now = now }
}

func NewPlannerUseCase(ai adapter.Completer, maxTokens int, logger *zerolog.Logger, opts ...PlannerOption) *plannerUC {
	if logger == nil {
		logger = logging.Nop()
	}
	p := &plannerUC{ai: ai, maxTokens: maxTokens, now: time.Now, log: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *plannerUC) today() string { return p.now().Format(model.DateLayout) }

// complete sends one task prompt and recovers the JSON part of the answer.
func (p *plannerUC) complete(ctx context.Context, task adapter.Task, system, user string, temp float64) (llmjson.Result, string, error) {
	ctx = logging.WithTask(ctx, string(task))
	l := logging.With(ctx, p.log)
	defer logging.TraceDuration(l, "Planner."+string(task))()

	raw, err := p.ai.Complete(ctx, adapter.CompletionRequest{
		Task:              task,
		SystemInstruction: system,
		UserContent:       user,
		Temperature:       temp,
		MaxOutputTokens:   p.maxTokens,
	})
	if err != nil {
		l.Warn().Err(err).Msg("llm completion failed")
		return llmjson.Result{}, "", err
	}
	return llmjson.Extract(raw), raw, nil
}

// decode fills v from res and reports whether it worked.
func (p *plannerUC) decode(ctx context.Context, task adapter.Task, res llmjson.Result, raw string, v any) bool {
	if err := res.Decode(v); err != nil {
		p.decodeFailed(ctx, task, raw, err)
		return false
	}
	return true
}

func (p *plannerUC) decodeFailed(ctx context.Context, task adapter.Task, raw string, err error) {
	logging.With(logging.WithTask(ctx, string(task)), p.log).Warn().
		Err(err).
		Str("raw_preview", logging.Preview(raw, rawPreviewLen)).
		Msg("could not decode llm json")
	metrics.IncExtractFailure(string(task))
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (p *plannerUC) ParseSyllabus(ctx context.Context, text, semesterStart string) (*model.SyllabusResult, error) {
	user := fmt.Sprintf("Semester start date: %s\n\nSyllabus:\n%s\n\nExtract every assignment as JSON.", semesterStart, text)
	res, raw, err := p.complete(ctx, adapter.TaskSyllabusParse, syllabusInstruction, user, tempSyllabus)
	if err != nil {
		return nil, err
	}

	out := &model.SyllabusResult{}
	if !p.decode(ctx, adapter.TaskSyllabusParse, res, raw, out) {
		out = &model.SyllabusResult{}
	}
	out.CourseName = strings.TrimSpace(out.CourseName)
	out.CourseCode = strings.TrimSpace(out.CourseCode)
	if out.Assignments == nil {
		out.Assignments = []model.Assignment{}
	}
	for i := range out.Assignments {
		a := &out.Assignments[i]
		a.Type = model.AssignmentType(strings.ToLower(strings.TrimSpace(string(a.Type))))
		if a.EstimatedHours <= 0 {
			a.EstimatedHours = model.Number(model.DefaultHours(a.Type))
		}
	}
	return out, nil
}

func (p *plannerUC) AnalyzeWorkload(ctx context.Context, assignments []model.Assignment) (*model.WorkloadAnalysis, error) {
	user := fmt.Sprintf("Today: %s\n\nAssignments:\n%s\n\nAnalyse the workload and flag risk weeks.", p.today(), indentJSON(assignments))
	res, raw, err := p.complete(ctx, adapter.TaskWorkloadAnalysis, workloadInstruction, user, tempWorkload)
	if err != nil {
		return nil, err
	}
	out := &model.WorkloadAnalysis{}
	if !p.decode(ctx, adapter.TaskWorkloadAnalysis, res, raw, out) {
		out = &model.WorkloadAnalysis{}
	}
	if out.WeeklyBreakdown == nil {
		out.WeeklyBreakdown = map[string]model.Number{}
	}
	if out.RiskWeeks == nil {
		out.RiskWeeks = []string{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if out.PriorityAssignments == nil {
		out.PriorityAssignments = []string{}
	}
	return out, nil
}

func (p *plannerUC) OptimizeSchedule(ctx context.Context, assignments []model.Assignment, hoursPerDay int) (*model.Schedule, error) {
	user := fmt.Sprintf("Today: %s\nStudy hours available per day: %d\n\nAssignments:\n%s\n\nBuild a detailed study schedule.",
		p.today(), hoursPerDay, indentJSON(assignments))
	res, raw, err := p.complete(ctx, adapter.TaskScheduleOptimize, scheduleInstruction, user, tempSchedule)
	if err != nil {
		return nil, err
	}
	out := &model.Schedule{}
	if !p.decode(ctx, adapter.TaskScheduleOptimize, res, raw, out) {
		out = &model.Schedule{}
	}
	if out.DailySchedule == nil {
		out.DailySchedule = map[string][]model.ScheduledTask{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out, nil
}

func (p *plannerUC) GenerateNotifications(ctx context.Context, schedule *model.Schedule, assignments []model.Assignment) ([]model.SmartNotification, error) {
	if schedule == nil {
		schedule = &model.Schedule{}
	}
	user := fmt.Sprintf("Today: %s\n\nSchedule:\n%s\n\nAssignments:\n%s\n\nWrite the reminders the student should receive.",
		p.today(), indentJSON(schedule), indentJSON(assignments))
	res, raw, err := p.complete(ctx, adapter.TaskNotificationGenerate, notificationInstruction, user, tempNotifications)
	if err != nil {
		return nil, err
	}

	out := []model.SmartNotification{}
	if res.IsArray() {
		if !p.decode(ctx, adapter.TaskNotificationGenerate, res, raw, &out) {
			return []model.SmartNotification{}, nil
		}
		return out, nil
	}
	var wrapped struct {
		Notifications []model.SmartNotification `json:"notifications"`
	}
	if !p.decode(ctx, adapter.TaskNotificationGenerate, res, raw, &wrapped) || wrapped.Notifications == nil {
		return out, nil
	}
	return wrapped.Notifications, nil
}

func (p *plannerUC) Assist(ctx context.Context, question string, courses []model.Course, assignments []model.Assignment) (*model.AssistantAction, error) {
	user := fmt.Sprintf("Today: %s\nStudent question: %s\n\nCourses:\n%s\n\nAssignments:\n%s\n\nAnswer using this context.",
		p.today(), question, indentJSON(courses), indentJSON(assignments))
	res, raw, err := p.complete(ctx, adapter.TaskAssistantAction, assistantInstruction, user, tempAssistant)
	if err != nil {
		return nil, err
	}

	chat := &model.AssistantAction{Action: model.ActionChat, Content: strings.TrimSpace(raw)}
	// plain prose is the normal chat reply, not a decode failure
	if !res.OK() || res.IsArray() {
		return chat, nil
	}
	var act model.AssistantAction
	if err := res.Decode(&act); err != nil {
		p.decodeFailed(ctx, adapter.TaskAssistantAction, raw, err)
		return chat, nil
	}
	switch act.Action {
	case model.ActionAddCourse, model.ActionDeleteCourse, model.ActionEditCourse, model.ActionAddAssignment, model.ActionChat:
	default:
		return chat, nil
	}
	if act.Action == model.ActionChat && act.Content == "" {
		return chat, nil
	}
	return &act, nil
}
