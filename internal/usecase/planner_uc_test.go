package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"coursesync/internal/domain"
	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/adapter"
)

func fixedClock() time.Time { return time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC) }

func newTestPlanner(ai adapter.Completer) *plannerUC {
	return NewPlannerUseCase(ai, 2000, nil, WithPlannerClock(fixedClock))
}

func TestPlanner_ParseSyllabus_BareCourse(t *testing.T) {
	ai := &fakeCompleter{replies: []string{`{"course_name":"Math 101","course_code":"","instructor":"","assignments":[]}`}}
	p := newTestPlanner(ai)

	got, err := p.ParseSyllabus(context.Background(), "Add Math 101", "2025-09-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CourseName != "Math 101" {
		t.Errorf("course name = %q", got.CourseName)
	}
	if got.Assignments == nil || len(got.Assignments) != 0 {
		t.Errorf("assignments = %#v, want empty non-nil", got.Assignments)
	}

	req := ai.last()
	if req.Task != adapter.TaskSyllabusParse || req.Temperature != 0.3 || req.MaxOutputTokens != 2000 {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.UserContent, "2025-09-01") || !strings.Contains(req.UserContent, "Add Math 101") {
		t.Errorf("user content missing inputs: %q", req.UserContent)
	}
	if !strings.Contains(req.SystemInstruction, `"assignments"`) {
		t.Errorf("system instruction lacks the contract")
	}
}

func TestPlanner_ParseSyllabus_FillsDefaultHours(t *testing.T) {
	reply := "Sure! Here is the data:\n```json\n" + `{
  "course_name": "Data Structures",
  "course_code": "CS201",
  "instructor": "Dr. Lee",
  "assignments": [
    {"name": "Quiz 1", "type": "Quiz", "due_date": "2025-09-15", "weight": "10%"},
    {"name": "Final Project", "type": "project", "due_date": "2025-12-01", "weight": 30, "estimated_hours": 25}
  ]
}` + "\n```\nLet me know if you need more."
	p := newTestPlanner(&fakeCompleter{replies: []string{reply}})

	got, err := p.ParseSyllabus(context.Background(), "syllabus", "2025-09-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.Assignment{
		{Name: "Quiz 1", Type: model.AssignmentQuiz, DueDate: "2025-09-15", Weight: 10, EstimatedHours: 2},
		{Name: "Final Project", Type: model.AssignmentProject, DueDate: "2025-12-01", Weight: 30, EstimatedHours: 25},
	}
	if diff := cmp.Diff(want, got.Assignments); diff != "" {
		t.Errorf("assignments mismatch (-want +got):\n%s", diff)
	}
	if got.CourseCode != "CS201" || got.Instructor != "Dr. Lee" {
		t.Errorf("unexpected course fields %+v", got)
	}
}

func TestPlanner_ParseSyllabus_UndecodableIsEmpty(t *testing.T) {
	p := newTestPlanner(&fakeCompleter{replies: []string{"I could not find a syllabus, sorry."}})
	got, err := p.ParseSyllabus(context.Background(), "???", "2025-09-01")
	if err != nil {
		t.Fatalf("decode failures must not be errors: %v", err)
	}
	if !got.Empty() || got.Assignments == nil {
		t.Errorf("want empty result with non-nil assignments, got %+v", got)
	}
}

func TestPlanner_RPCErrorsPropagateUnchanged(t *testing.T) {
	rpcErr := fmt.Errorf("groq: %w", domain.ErrServiceUnavailable)
	p := newTestPlanner(&fakeCompleter{err: rpcErr})
	ctx := context.Background()
	as := []model.Assignment{{Name: "HW"}}

	checks := map[string]error{}
	_, checks["syllabus"] = p.ParseSyllabus(ctx, "x", "2025-09-01")
	_, checks["workload"] = p.AnalyzeWorkload(ctx, as)
	_, checks["schedule"] = p.OptimizeSchedule(ctx, as, 4)
	_, checks["notifications"] = p.GenerateNotifications(ctx, nil, as)
	_, checks["assist"] = p.Assist(ctx, "hi", nil, as)
	for name, err := range checks {
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			t.Errorf("%s: err = %v", name, err)
		}
	}

	p = newTestPlanner(&fakeCompleter{err: domain.ErrNotConfigured})
	if _, err := p.AnalyzeWorkload(ctx, as); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("not configured: err = %v", err)
	}
}

func TestPlanner_AnalyzeWorkload(t *testing.T) {
	ai := &fakeCompleter{replies: []string{`{"total_hours": 27, "weekly_breakdown": {"2025-10-06": 22, "2025-10-13": "5"}, "risk_weeks": ["2025-10-06"], "recommendations": ["start early"], "priority_assignments": ["Essay"]}`}}
	p := newTestPlanner(ai)

	got, err := p.AnalyzeWorkload(context.Background(), []model.Assignment{{Name: "Essay", EstimatedHours: 22}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &model.WorkloadAnalysis{
		TotalHours:          27,
		WeeklyBreakdown:     map[string]model.Number{"2025-10-06": 22, "2025-10-13": 5},
		RiskWeeks:           []string{"2025-10-06"},
		Recommendations:     []string{"start early"},
		PriorityAssignments: []string{"Essay"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}
	req := ai.last()
	if req.Temperature != 0.3 || !strings.Contains(req.UserContent, "2025-10-06") || !strings.Contains(req.UserContent, `"Essay"`) {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestPlanner_OptimizeSchedule(t *testing.T) {
	ai := &fakeCompleter{replies: []string{"garbage"}}
	p := newTestPlanner(ai)

	got, err := p.OptimizeSchedule(context.Background(), []model.Assignment{{Name: "HW"}}, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DailySchedule == nil || len(got.DailySchedule) != 0 || got.Warnings == nil {
		t.Errorf("want empty schedule, got %+v", got)
	}
	req := ai.last()
	if req.Temperature != 0.5 || !strings.Contains(req.UserContent, "per day: 6") {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestPlanner_GenerateNotifications(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  []model.SmartNotification
	}{
		{
			name:  "bare array",
			reply: `[{"message":"x","urgency":"high","action":"start","send_at":"2025-10-07 09:00","type":"deadline"}]`,
			want:  []model.SmartNotification{{Message: "x", Urgency: "high", Action: "start", SendAt: "2025-10-07 09:00", Type: "deadline"}},
		},
		{
			name:  "wrapped object",
			reply: "```json\n{\"notifications\":[{\"message\":\"y\",\"urgency\":\"low\"}]}\n```",
			want:  []model.SmartNotification{{Message: "y", Urgency: "low"}},
		},
		{
			name:  "object without notifications",
			reply: `{"other":1}`,
			want:  []model.SmartNotification{},
		},
		{
			name:  "nothing decodable",
			reply: "no reminders today",
			want:  []model.SmartNotification{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ai := &fakeCompleter{replies: []string{tc.reply}}
			got, err := newTestPlanner(ai).GenerateNotifications(context.Background(), &model.Schedule{}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("notifications mismatch (-want +got):\n%s", diff)
			}
			if ai.last().Temperature != 0.7 {
				t.Errorf("temperature = %v", ai.last().Temperature)
			}
		})
	}
}

func TestPlanner_Assist(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  *model.AssistantAction
	}{
		{
			name:  "structured action",
			reply: `{"action":"delete_course","content":"Removed.","data":{"course_name":"Math"}}`,
			want:  &model.AssistantAction{Action: model.ActionDeleteCourse, Content: "Removed.", Data: &model.ActionData{CourseName: "Math"}},
		},
		{
			name:  "plain prose becomes chat",
			reply: "You have two essays due next week.",
			want:  &model.AssistantAction{Action: model.ActionChat, Content: "You have two essays due next week."},
		},
		{
			name:  "unknown action becomes chat with raw text",
			reply: `{"action":"launch_rocket","content":"ok"}`,
			want:  &model.AssistantAction{Action: model.ActionChat, Content: `{"action":"launch_rocket","content":"ok"}`},
		},
		{
			name:  "type mismatch becomes chat",
			reply: `{"action":"add_course","data":"not an object"}`,
			want:  &model.AssistantAction{Action: model.ActionChat, Content: `{"action":"add_course","data":"not an object"}`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ai := &fakeCompleter{replies: []string{tc.reply}}
			got, err := newTestPlanner(ai).Assist(context.Background(), "what now?", []model.Course{{CourseName: "Math"}}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("action mismatch (-want +got):\n%s", diff)
			}
			req := ai.last()
			if req.Task != adapter.TaskAssistantAction || !strings.Contains(req.UserContent, "what now?") || !strings.Contains(req.UserContent, "Math") {
				t.Errorf("unexpected request %+v", req)
			}
		})
	}
}
