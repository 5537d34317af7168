package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"coursesync/internal/domain"
	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/logging"
	"coursesync/internal/usecase"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20

	unavailableMsg = "LLM service unavailable or rate limited. Try again later."
)

// Server exposes the course tracker over JSON HTTP.
type Server struct {
	courses usecase.CourseUseCase
	log     *zerolog.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewServer(courses usecase.CourseUseCase, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{courses: courses, log: logger, now: time.Now, timeout: requestTimeout}
}

// Routes builds the chi router with the middleware stack applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Metrics(),
		Timeout(s.timeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Post("/syllabus/text", s.handleSyllabusText)
		r.Post("/syllabus/url", s.handleSyllabusURL)
		r.Post("/syllabus/file", s.handleSyllabusFile)
		r.Post("/course/manual", s.handleManualCourse)
		r.Delete("/course/{id}", s.handleDeleteCourse)

		r.Post("/assignments", s.handleAddAssignment)
		r.Post("/progress", s.handleProgress)

		r.Get("/workload", s.handleWorkload)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/notifications", s.handleDeadlines)
		r.Get("/notifications/smart", s.handleSmartNotifications)

		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)

		r.Post("/chat", s.handleChat)

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "API endpoint not found")
		})
	})
	return r
}

type syllabusTextRequest struct {
	SyllabusText  string `json:"syllabus_text"`
	SemesterStart string `json:"semester_start"`
}

type syllabusURLRequest struct {
	URL           string `json:"url"`
	SemesterStart string `json:"semester_start"`
}

type addAssignmentRequest struct {
	CourseName string           `json:"course_name"`
	Assignment model.Assignment `json:"assignment"`
}

type progressRequest struct {
	AssignmentID string `json:"assignment_id"`
	Progress     int    `json:"progress"`
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.courses.State(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSyllabusText(w http.ResponseWriter, r *http.Request) {
	var req syllabusTextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := s.courses.AddSyllabusText(r.Context(), req.SyllabusText, req.SemesterStart)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "course", view)
}

func (s *Server) handleSyllabusURL(w http.ResponseWriter, r *http.Request) {
	var req syllabusURLRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := s.courses.AddSyllabusURL(r.Context(), req.URL, req.SemesterStart)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "course", view)
}

func (s *Server) handleSyllabusFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}
	view, err := s.courses.AddSyllabusFile(r.Context(), hdr.Filename, content, r.FormValue("semester_start"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "course", view)
}

func (s *Server) handleManualCourse(w http.ResponseWriter, r *http.Request) {
	var req usecase.ManualCourse
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := s.courses.AddManualCourse(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "course", view)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithCourseID(r.Context(), id)
	if err := s.courses.DeleteCourse(ctx, id); err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAddAssignment(w http.ResponseWriter, r *http.Request) {
	var req addAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.courses.AddAssignment(r.Context(), req.CourseName, req.Assignment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "assignment", a)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.courses.UpdateProgress(r.Context(), req.AssignmentID, req.Progress)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "assignment", a)
}

func (s *Server) handleWorkload(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.courses.Workload(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "analysis", analysis)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	hours := 0
	if v := r.URL.Query().Get("hours_per_day"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 24 {
			writeError(w, http.StatusBadRequest, "hours_per_day must be between 1 and 24")
			return
		}
		hours = n
	}
	sched, err := s.courses.Schedule(r.Context(), hours)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "schedule", sched)
}

func (s *Server) handleDeadlines(w http.ResponseWriter, r *http.Request) {
	out, err := s.courses.DeadlineNotifications(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "notifications", out)
}

func (s *Server) handleSmartNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := s.courses.SmartNotifications(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "notifications", out)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.courses.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	st, err := s.courses.UpdateSettings(r.Context(), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "settings", st)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := s.courses.Chat(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, "response", msg)
}

// fail maps use case errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if code >= 500 {
		l.Error().Err(err).Int("status", code).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", code).Msg("request rejected")
	}
	writeError(w, code, msg)
}

func statusFor(err error) (int, string) {
	var netErr *adapter.NetworkError
	var stErr *adapter.StatusError
	switch {
	case errors.Is(err, domain.ErrNotConfigured),
		errors.Is(err, domain.ErrServiceUnavailable),
		errors.As(err, &netErr):
		return http.StatusServiceUnavailable, unavailableMsg
	case errors.As(err, &stErr):
		return http.StatusBadGateway, "LLM provider rejected the request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrNoAssignments):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrExtractionFailed),
		errors.Is(err, domain.ErrScrapeFailed):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeOK(w http.ResponseWriter, key string, v any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, key: v})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
