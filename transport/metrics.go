package transport

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "rangesync_transport"

// tracker holds a handful of counters and a latency histogram for a
// Server, constructed once via WithMetrics and left nil when metrics
// are disabled. clientSucceeded and clientFailed are registered with the
// rest but nothing in this package increments them; Client keeps no
// tracker.
type tracker struct {
	accepted        prometheus.Counter
	dropped         prometheus.Counter
	completed       prometheus.Counter
	failed          prometheus.Counter
	sessionLatency  prometheus.Histogram
	sessionRounds   prometheus.Histogram
	clientSucceeded prometheus.Counter
	clientFailed    prometheus.Counter
}

func newTracker(reg prometheus.Registerer) *tracker {
	t := &tracker{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_accepted_total",
			Help:      "Number of inbound reconciliation sessions accepted.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_dropped_total",
			Help:      "Number of inbound sessions dropped because the in-flight semaphore was full.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_completed_total",
			Help:      "Number of inbound sessions that converged successfully.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_failed_total",
			Help:      "Number of inbound sessions that errored out.",
		}),
		sessionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of a server-side reconciliation session.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		sessionRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "session_rounds",
			Help:      "Number of message round-trips a server-side session took to converge.",
			Buckets:   prometheus.LinearBuckets(1, 2, 16),
		}),
		clientSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "client_sessions_succeeded_total",
			Help:      "Number of outbound Dial sessions that converged successfully.",
		}),
		clientFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "client_sessions_failed_total",
			Help:      "Number of outbound Dial sessions that errored out.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			t.accepted, t.dropped, t.completed, t.failed,
			t.sessionLatency, t.sessionRounds, t.clientSucceeded, t.clientFailed,
		)
	}
	return t
}
