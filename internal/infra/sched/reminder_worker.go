package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"coursesync/internal/domain/model"
	"coursesync/internal/infra/logging"
	"coursesync/internal/infra/metrics"
)

// ReminderClaimer hands out deadline alerts that were not delivered yet.
type ReminderClaimer interface {
	ClaimDeadlineReminders(ctx context.Context, now time.Time) ([]model.DeadlineNotification, error)
}

// ReminderWorker polls for due deadlines and delivers each alert once. Delivery
// is a structured log line per reminder plus a counter.
type ReminderWorker struct {
	interval time.Duration
	claimer  ReminderClaimer
	now      func() time.Time
	log      *zerolog.Logger
}

func NewReminderWorker(interval time.Duration, claimer ReminderClaimer, logger *zerolog.Logger) *ReminderWorker {
	if logger == nil {
		logger = logging.Nop()
	}
	compLog := logger.With().Str("component", "ReminderWorker").Logger()
	return &ReminderWorker{
		interval: interval,
		claimer:  claimer,
		now:      time.Now,
		log:      &compLog,
	}
}

func (w *ReminderWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reminder worker")
	// Run once on startup, then on every tick
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reminder worker")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass and returns how many reminders went out.
func (w *ReminderWorker) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	due, err := w.claimer.ClaimDeadlineReminders(runCtx, w.now())
	if err != nil {
		metrics.IncReminderRun("failed")
		w.log.Error().Err(err).Msg("reminder check failed")
		return 0
	}
	metrics.IncReminderRun("ok")
	for _, n := range due {
		metrics.IncReminderSent(string(n.Type))
		w.log.WithLevel(logLevel(n.Type)).
			Str("notification_id", n.ID).
			Str("alert", string(n.Type)).
			Str("title", n.Title).
			Str("assignment", n.Assignment).
			Str("course", n.Course).
			Str("due_date", n.DueDate).
			Int("days_until", n.DaysUntil).
			Msg(n.Message)
	}
	if len(due) > 0 {
		w.log.Info().Int("count", len(due)).Msg("deadline reminders sent")
	}
	return len(due)
}

func logLevel(l model.DeadlineLevel) zerolog.Level {
	switch l {
	case model.DeadlineOverdue:
		return zerolog.ErrorLevel
	case model.DeadlineSoon:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
