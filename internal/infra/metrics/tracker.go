package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		coursesTotal,
		assignmentsTotal,
	)
}

var (
	coursesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "courses_total",
			Help: "Current number of tracked courses.",
		},
	)

	assignmentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assignments_total",
			Help: "Current number of assignments by status.",
		},
		[]string{"status"}, // 'pending', 'completed'
	)
)

// SetTrackerCounts refreshes the course/assignment gauges after a save.
func SetTrackerCounts(courses, pending, completed int) {
	coursesTotal.Set(float64(courses))
	assignmentsTotal.WithLabelValues("pending").Set(float64(pending))
	assignmentsTotal.WithLabelValues("completed").Set(float64(completed))
}
