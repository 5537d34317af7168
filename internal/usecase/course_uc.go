// File: internal/usecase/course_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"coursesync/internal/domain"
	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/domain/ports/repository"
	"coursesync/internal/infra/htmlconv"
	"coursesync/internal/infra/logging"
	"coursesync/internal/infra/metrics"
)

// Compile-time check
var _ CourseUseCase = (*courseUC)(nil)

// CourseUseCase owns the tracker state: courses, assignments and settings.
type CourseUseCase interface {
	State(ctx context.Context) (model.Snapshot, error)

	AddSyllabusText(ctx context.Context, text, semesterStart string) (*model.CourseView, error)
	AddSyllabusURL(ctx context.Context, pageURL, semesterStart string) (*model.CourseView, error)
	AddSyllabusFile(ctx context.Context, filename string, content []byte, semesterStart string) (*model.CourseView, error)
	AddManualCourse(ctx context.Context, in ManualCourse) (*model.CourseView, error)
	DeleteCourse(ctx context.Context, courseID string) error

	AddAssignment(ctx context.Context, courseName string, a model.Assignment) (*model.Assignment, error)
	UpdateProgress(ctx context.Context, assignmentID string, progress int) (*model.Assignment, error)

	Settings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error)

	Workload(ctx context.Context) (*model.WorkloadAnalysis, error)
	Schedule(ctx context.Context, hoursPerDay int) (*model.Schedule, error)
	SmartNotifications(ctx context.Context) ([]model.SmartNotification, error)
	DeadlineNotifications(ctx context.Context, now time.Time) ([]model.DeadlineNotification, error)
	ClaimDeadlineReminders(ctx context.Context, now time.Time) ([]model.DeadlineNotification, error)

	Chat(ctx context.Context, question string) (string, error)
}

// ManualCourse is a course entered without the LLM.
type ManualCourse struct {
	CourseName  string             `json:"course_name"`
	CourseCode  string             `json:"course_code"`
	Instructor  string             `json:"instructor"`
	Assignments []model.Assignment `json:"assignments"`
}

const (
	untitledCourse = "Untitled Course"

	// oldest sent ids are dropped past this
	maxSentNotifications = 1000
)

// errNothingToSave aborts an update without writing.
var errNothingToSave = errors.New("nothing to save")

type courseUC struct {
	repo     repository.StateRepository
	planner  PlannerUseCase
	scraper  adapter.Scraper
	defaults model.Settings
	now      func() time.Time
	log      *zerolog.Logger

	// mu serialises every read-modify-save of state
	mu    sync.Mutex
	state *model.State
}

func NewCourseUseCase(
	repo repository.StateRepository,
	planner PlannerUseCase,
	scraper adapter.Scraper,
	defaults model.Settings,
	logger *zerolog.Logger,
) *courseUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &courseUC{
		repo:     repo,
		planner:  planner,
		scraper:  scraper,
		defaults: defaults,
		now:      time.Now,
		log:      logger,
	}
}

// loadLocked returns the cached state, loading it on first use. Caller holds mu.
func (u *courseUC) loadLocked(ctx context.Context) (*model.State, error) {
	if u.state != nil {
		return u.state, nil
	}
	st, err := u.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st.Settings.FillDefaults(u.defaults)
	// documents written by older versions may lack IDs
	for i := range st.Courses {
		if st.Courses[i].ID == "" {
			st.Courses[i].ID = model.NewID()
		}
	}
	for i := range st.Assignments {
		if st.Assignments[i].ID == "" {
			st.Assignments[i].ID = model.NewID()
		}
	}
	u.state = st
	publishCounts(st)
	return st, nil
}

// view returns a private copy of the current state.
func (u *courseUC) view(ctx context.Context) (*model.State, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	st, err := u.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// update applies fn to a copy of the state and commits it only if fn and the
// save both succeed.
func (u *courseUC) update(ctx context.Context, fn func(st *model.State) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, err := u.loadLocked(ctx)
	if err != nil {
		return err
	}
	work := cur.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := u.repo.Save(ctx, work); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	u.state = work
	publishCounts(work)
	return nil
}

// Invalidate drops the cached state so the next call reloads it from the repository.
func (u *courseUC) Invalidate() {
	u.mu.Lock()
	u.state = nil
	u.mu.Unlock()
}

func publishCounts(st *model.State) {
	s := st.Snapshot().Stats
	metrics.SetTrackerCounts(s.TotalCourses, s.PendingAssignments, s.CompletedAssignments)
}

func (u *courseUC) State(ctx context.Context) (model.Snapshot, error) {
	st, err := u.view(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	return st.Snapshot(), nil
}

func (u *courseUC) semesterStart(ctx context.Context, given string) (string, error) {
	if s := strings.TrimSpace(given); s != "" {
		if _, err := time.Parse(model.DateLayout, s); err != nil {
			return "", fmt.Errorf("semester_start %q: %w", s, domain.ErrInvalidArgument)
		}
		return s, nil
	}
	st, err := u.view(ctx)
	if err != nil {
		return "", err
	}
	return st.Settings.SemesterStart, nil
}

func (u *courseUC) AddSyllabusText(ctx context.Context, text, semesterStart string) (*model.CourseView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("syllabus text is empty: %w", domain.ErrInvalidArgument)
	}
	start, err := u.semesterStart(ctx, semesterStart)
	if err != nil {
		return nil, err
	}
	res, err := u.planner.ParseSyllabus(ctx, text, start)
	if err != nil {
		return nil, err
	}
	return u.addParsed(ctx, res)
}

func (u *courseUC) AddSyllabusURL(ctx context.Context, pageURL, semesterStart string) (*model.CourseView, error) {
	pageURL = strings.TrimSpace(pageURL)
	parsed, err := url.ParseRequestURI(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("url %q: %w", pageURL, domain.ErrInvalidArgument)
	}
	content, err := u.scraper.Scrape(ctx, pageURL)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("url", pageURL).Msg("scrape failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrScrapeFailed, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: page is empty", domain.ErrScrapeFailed)
	}
	return u.AddSyllabusText(ctx, content, semesterStart)
}

func (u *courseUC) AddSyllabusFile(ctx context.Context, filename string, content []byte, semesterStart string) (*model.CourseView, error) {
	text, err := fileText(filename, content)
	if err != nil {
		return nil, err
	}
	return u.AddSyllabusText(ctx, text, semesterStart)
}

// fileText extracts syllabus text from an upload. Only text formats are
// accepted; HTML is converted to markdown first.
func fileText(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".doc", ".docx":
		return "", fmt.Errorf("%s files are not supported, upload plain text: %w", filepath.Ext(filename), domain.ErrInvalidArgument)
	case ".html", ".htm":
		md, err := htmlconv.ToMarkdown(string(content))
		if err != nil {
			return "", fmt.Errorf("%v: %w", err, domain.ErrInvalidArgument)
		}
		content = []byte(md)
	}
	if !utf8.Valid(content) || strings.ContainsRune(string(content), 0) {
		return "", fmt.Errorf("file is not text: %w", domain.ErrInvalidArgument)
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("no content extracted from file: %w", domain.ErrInvalidArgument)
	}
	return text, nil
}

// addParsed stores an extracted course with its assignments.
func (u *courseUC) addParsed(ctx context.Context, res *model.SyllabusResult) (*model.CourseView, error) {
	if res.Empty() {
		return nil, domain.ErrExtractionFailed
	}
	name := res.CourseName
	if name == "" && res.CourseCode == "" {
		name = untitledCourse
	}
	course, err := model.NewCourse(name, res.CourseCode, res.Instructor)
	if err != nil {
		return nil, domain.ErrExtractionFailed
	}
	course.CreatedAt = u.now()
	return u.storeCourse(ctx, course, res.Assignments)
}

func (u *courseUC) storeCourse(ctx context.Context, course *model.Course, in []model.Assignment) (*model.CourseView, error) {
	assignments := make([]model.Assignment, 0, len(in))
	for _, a := range in {
		a.ID = ""
		a.Progress = 0
		a.CompletedAt = nil
		a.AttachTo(course)
		assignments = append(assignments, a)
	}
	err := u.update(ctx, func(st *model.State) error {
		st.Courses = append(st.Courses, *course)
		st.Assignments = append(st.Assignments, assignments...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.With(logging.WithCourseID(ctx, course.ID), u.log).Info().
		Str("course", course.CourseName).
		Int("assignments", len(assignments)).
		Msg("course added")
	return &model.CourseView{Course: *course, Progress: 0, Assignments: assignments}, nil
}

func (u *courseUC) AddManualCourse(ctx context.Context, in ManualCourse) (*model.CourseView, error) {
	course, err := model.NewCourse(in.CourseName, in.CourseCode, in.Instructor)
	if err != nil {
		return nil, fmt.Errorf("course name or code required: %w", err)
	}
	course.CreatedAt = u.now()
	for _, a := range in.Assignments {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("assignment name required: %w", domain.ErrInvalidArgument)
		}
	}
	return u.storeCourse(ctx, course, in.Assignments)
}

func (u *courseUC) DeleteCourse(ctx context.Context, courseID string) error {
	var removed model.Course
	err := u.update(ctx, func(st *model.State) error {
		for i := range st.Courses {
			if st.Courses[i].ID == courseID {
				removed = st.RemoveCourse(i)
				return nil
			}
		}
		return fmt.Errorf("course %q: %w", courseID, domain.ErrNotFound)
	})
	if err == nil {
		logging.With(logging.WithCourseID(ctx, courseID), u.log).Info().Str("course", removed.CourseName).Msg("course deleted")
	}
	return err
}

// courseMatcher returns the index of the target course or -1.
type courseMatcher func(courses []model.Course, target string) int

// matchExactThenName prefers an exact name/code match, then a substring of the name.
func matchExactThenName(courses []model.Course, target string) int {
	for i := range courses {
		if courses[i].MatchesExact(target) {
			return i
		}
	}
	lower := strings.ToLower(strings.TrimSpace(target))
	if lower == "" {
		return -1
	}
	for i := range courses {
		if strings.Contains(strings.ToLower(courses[i].CourseName), lower) {
			return i
		}
	}
	return -1
}

// matchLoose takes the first course whose name or code contains target.
func matchLoose(courses []model.Course, target string) int {
	for i := range courses {
		if courses[i].Matches(target) {
			return i
		}
	}
	return -1
}

func (u *courseUC) AddAssignment(ctx context.Context, courseName string, a model.Assignment) (*model.Assignment, error) {
	return u.addAssignment(ctx, courseName, a, matchExactThenName)
}

func (u *courseUC) addAssignment(ctx context.Context, target string, a model.Assignment, match courseMatcher) (*model.Assignment, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("course name required: %w", domain.ErrInvalidArgument)
	}
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return nil, fmt.Errorf("assignment name required: %w", domain.ErrInvalidArgument)
	}
	if a.DueDate != "" {
		if _, ok := a.Due(); !ok {
			return nil, fmt.Errorf("due_date %q: %w", a.DueDate, domain.ErrInvalidArgument)
		}
	} else {
		a.DueDate = u.now().Format(model.DateLayout)
	}

	err := u.update(ctx, func(st *model.State) error {
		i := match(st.Courses, target)
		if i < 0 {
			return fmt.Errorf("course %q: %w", target, domain.ErrNotFound)
		}
		a.ID = ""
		a.Progress = 0
		a.CompletedAt = nil
		a.AttachTo(&st.Courses[i])
		st.Assignments = append(st.Assignments, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (u *courseUC) UpdateProgress(ctx context.Context, assignmentID string, progress int) (*model.Assignment, error) {
	var out model.Assignment
	err := u.update(ctx, func(st *model.State) error {
		for i := range st.Assignments {
			if st.Assignments[i].ID == assignmentID {
				st.Assignments[i].SetProgress(progress, u.now())
				out = st.Assignments[i]
				return nil
			}
		}
		return fmt.Errorf("assignment %q: %w", assignmentID, domain.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *courseUC) Settings(ctx context.Context) (model.Settings, error) {
	st, err := u.view(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	return st.Settings, nil
}

func (u *courseUC) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	if err := validatePatch(patch); err != nil {
		return model.Settings{}, err
	}
	var out model.Settings
	err := u.update(ctx, func(st *model.State) error {
		st.Settings.Apply(patch)
		out = st.Settings
		return nil
	})
	return out, err
}

func validatePatch(p model.SettingsPatch) error {
	switch {
	case p.HoursPerDay != nil && (*p.HoursPerDay <= 0 || *p.HoursPerDay > 24):
		return fmt.Errorf("hours_per_day must be 1-24: %w", domain.ErrInvalidArgument)
	case p.RiskThreshold != nil && *p.RiskThreshold <= 0:
		return fmt.Errorf("risk_threshold must be positive: %w", domain.ErrInvalidArgument)
	case p.NotificationLeadDays != nil && *p.NotificationLeadDays < 0:
		return fmt.Errorf("notification_lead_days must not be negative: %w", domain.ErrInvalidArgument)
	}
	if p.SemesterStart != nil {
		if _, err := time.Parse(model.DateLayout, *p.SemesterStart); err != nil {
			return fmt.Errorf("semester_start %q: %w", *p.SemesterStart, domain.ErrInvalidArgument)
		}
	}
	return nil
}

// withAssignments returns the current assignments or ErrNoAssignments.
func (u *courseUC) withAssignments(ctx context.Context) (*model.State, error) {
	st, err := u.view(ctx)
	if err != nil {
		return nil, err
	}
	if len(st.Assignments) == 0 {
		return nil, domain.ErrNoAssignments
	}
	return st, nil
}

func (u *courseUC) Workload(ctx context.Context) (*model.WorkloadAnalysis, error) {
	st, err := u.withAssignments(ctx)
	if err != nil {
		return nil, err
	}
	return u.planner.AnalyzeWorkload(ctx, st.Assignments)
}

func (u *courseUC) Schedule(ctx context.Context, hoursPerDay int) (*model.Schedule, error) {
	st, err := u.withAssignments(ctx)
	if err != nil {
		return nil, err
	}
	if hoursPerDay <= 0 {
		hoursPerDay = st.Settings.HoursPerDay
	}
	return u.planner.OptimizeSchedule(ctx, st.Assignments, hoursPerDay)
}

// SmartNotifications plans a schedule first and lets the LLM write reminders from it.
func (u *courseUC) SmartNotifications(ctx context.Context) ([]model.SmartNotification, error) {
	st, err := u.withAssignments(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]model.Assignment, 0, len(st.Assignments))
	for _, a := range st.Assignments {
		if !a.Done() {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return []model.SmartNotification{}, nil
	}
	schedule, err := u.planner.OptimizeSchedule(ctx, pending, st.Settings.HoursPerDay)
	if err != nil {
		return nil, err
	}
	return u.planner.GenerateNotifications(ctx, schedule, pending)
}

func (u *courseUC) DeadlineNotifications(ctx context.Context, now time.Time) ([]model.DeadlineNotification, error) {
	st, err := u.view(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.DeadlineNotification{}
	for _, a := range st.Assignments {
		if n, ok := model.DeadlineAlert(a, now, st.Settings.NotificationLeadDays); ok {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntil < out[j].DaysUntil })
	return out, nil
}

// ClaimDeadlineReminders returns the deadline alerts that were never handed out
// before and records their IDs, so each alert is delivered at most once.
func (u *courseUC) ClaimDeadlineReminders(ctx context.Context, now time.Time) ([]model.DeadlineNotification, error) {
	var fresh []model.DeadlineNotification
	err := u.update(ctx, func(st *model.State) error {
		sent := make(map[string]struct{}, len(st.SentNotifications))
		for _, id := range st.SentNotifications {
			sent[id] = struct{}{}
		}
		for _, a := range st.Assignments {
			n, ok := model.DeadlineAlert(a, now, st.Settings.NotificationLeadDays)
			if !ok {
				continue
			}
			if _, dup := sent[n.ID]; dup {
				continue
			}
			sent[n.ID] = struct{}{}
			fresh = append(fresh, n)
			st.SentNotifications = append(st.SentNotifications, n.ID)
		}
		if len(fresh) == 0 {
			return errNothingToSave
		}
		if extra := len(st.SentNotifications) - maxSentNotifications; extra > 0 {
			st.SentNotifications = append([]string(nil), st.SentNotifications[extra:]...)
		}
		return nil
	})
	if errors.Is(err, errNothingToSave) {
		return []model.DeadlineNotification{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].DaysUntil < fresh[j].DaysUntil })
	return fresh, nil
}

// Chat asks the assistant and carries out the action it chose. The returned
// text is the assistant's reply plus a note on what was done.
func (u *courseUC) Chat(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is empty: %w", domain.ErrInvalidArgument)
	}
	st, err := u.view(ctx)
	if err != nil {
		return "", err
	}
	act, err := u.planner.Assist(ctx, question, st.Courses, st.Assignments)
	if err != nil {
		return "", err
	}
	l := logging.With(ctx, u.log)
	l.Debug().Str("action", string(act.Action)).Msg("assistant action")

	data := act.Data
	if data == nil {
		data = &model.ActionData{}
	}
	switch act.Action {
	case model.ActionAddCourse:
		return u.chatAddCourse(ctx, act.Content, data)

	case model.ActionAddAssignment:
		if strings.TrimSpace(data.CourseName) == "" || data.Assignment == nil {
			return reply(act.Content, "(Missing course name or assignment details)"), nil
		}
		a, err := u.addAssignment(ctx, data.CourseName, *data.Assignment, matchLoose)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return reply(act.Content, fmt.Sprintf("(Course '%s' not found)", data.CourseName)), nil
		case errors.Is(err, domain.ErrInvalidArgument):
			return reply(act.Content, "(Missing course name or assignment details)"), nil
		case err != nil:
			return "", err
		}
		return reply(act.Content, fmt.Sprintf("Added assignment '%s' to %s", a.Name, a.Course)), nil

	case model.ActionDeleteCourse:
		target := strings.TrimSpace(data.CourseName)
		if target == "" {
			return reply(act.Content, "(No course name specified)"), nil
		}
		var removed model.Course
		err := u.update(ctx, func(st *model.State) error {
			i := matchLoose(st.Courses, target)
			if i < 0 {
				return domain.ErrNotFound
			}
			removed = st.RemoveCourse(i)
			return nil
		})
		if errors.Is(err, domain.ErrNotFound) {
			return reply(act.Content, fmt.Sprintf("(Could not find course '%s' to delete)", target)), nil
		}
		if err != nil {
			return "", err
		}
		return reply(act.Content, "Deleted course: "+removed.CourseName), nil

	case model.ActionEditCourse:
		return reply(act.Content, "(Editing courses through chat is not supported yet. Delete and re-add the course instead.)"), nil
	}
	return act.Content, nil
}

func (u *courseUC) chatAddCourse(ctx context.Context, content string, data *model.ActionData) (string, error) {
	text := strings.TrimSpace(data.SyllabusText)
	if text == "" {
		text = strings.TrimSpace(data.CourseName)
	}
	if text == "" {
		return reply(content, "(No syllabus text found to process)"), nil
	}

	var (
		view *model.CourseView
		err  error
	)
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		view, err = u.AddSyllabusURL(ctx, text, "")
	} else {
		view, err = u.AddSyllabusText(ctx, text, "")
	}
	switch {
	case errors.Is(err, domain.ErrScrapeFailed):
		return reply(content, "(Failed to scrape the URL provided)"), nil
	case errors.Is(err, domain.ErrExtractionFailed), errors.Is(err, domain.ErrInvalidArgument):
		return reply(content, "(Failed to extract course details)"), nil
	case err != nil:
		return "", err
	}
	return reply(content, "Added course: "+view.CourseName), nil
}

func reply(content, note string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return note
	}
	if strings.HasPrefix(note, "(") {
		return content + "\n" + note
	}
	return content + "\n\n" + note
}
