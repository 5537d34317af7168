package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(remindersSentTotal, reminderRunsTotal) }

var (
	remindersSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadline_reminders_sent_total",
			Help: "Deadline reminders delivered, labeled by level.",
		},
		[]string{"level"}, // 'error', 'warning', 'success'
	)

	reminderRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadline_reminder_runs_total",
			Help: "Deadline watcher passes, labeled by status.",
		},
		[]string{"status"}, // 'ok', 'failed'
	)
)

func IncReminderSent(level string) {
	remindersSentTotal.WithLabelValues(norm(level)).Inc()
}

func IncReminderRun(status string) {
	reminderRunsTotal.WithLabelValues(norm(status)).Inc()
}
