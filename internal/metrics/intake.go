package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionAcceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastbot",
			Subsystem: "intake",
			Name:      "submissions_accepted_total",
			Help:      "Accepted submissions, by input kind.",
		},
		[]string{"input"},
	)

	submissionRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastbot",
			Subsystem: "intake",
			Name:      "submissions_rejected_total",
			Help:      "Submissions rejected before a record was created, by reason.",
		},
		[]string{"reason"},
	)
)

// SubmissionAccepted counts an accepted submission ("document" or "text").
func SubmissionAccepted(input string) {
	submissionAcceptedTotal.WithLabelValues(input).Inc()
}

// SubmissionRejected counts a pre-record rejection.
func SubmissionRejected(reason string) {
	submissionRejectedTotal.WithLabelValues(reason).Inc()
}
