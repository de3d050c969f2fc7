package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paramctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paramctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	remoteCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paramctl",
			Subsystem: "remote",
			Name:      "commands_total",
			Help:      "Remote commands handled.",
		},
		[]string{"command", "success"},
	)
	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paramctl",
			Subsystem: "remote",
			Name:      "command_duration_seconds",
			Help:      "Remote command duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paramctl",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Syncer set runs by outcome.",
		},
		[]string{"reason", "outcome"},
	)
	syncFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paramctl",
			Subsystem: "sync",
			Name:      "failures_total",
			Help:      "Individual syncer failures.",
		},
		[]string{"reason"},
	)
	domainApplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paramctl",
			Subsystem: "domain",
			Name:      "applies_total",
			Help:      "Domain state transitions and apply failures.",
		},
		[]string{"domain", "result"},
	)
	criterionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paramctl",
			Subsystem: "criteria",
			Name:      "changes_total",
			Help:      "Criterion state changes.",
		},
		[]string{"criterion"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			remoteCommands, remoteDuration,
			syncRuns, syncFailures,
			domainApplies, criterionChanges,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCommand(command string, success bool, duration time.Duration) {
	RegisterMetrics()
	remoteCommands.WithLabelValues(command, strconv.FormatBool(success)).Inc()
	remoteDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordSync counts one syncer set run. reason is the operation that
// triggered it (set, apply, sync).
func RecordSync(reason, outcome string, failures int) {
	RegisterMetrics()
	syncRuns.WithLabelValues(reason, outcome).Inc()
	if failures > 0 {
		syncFailures.WithLabelValues(reason).Add(float64(failures))
	}
}

func RecordDomainApply(domain, result string) {
	RegisterMetrics()
	domainApplies.WithLabelValues(domain, result).Inc()
}

func RecordCriterionChange(criterion string) {
	RegisterMetrics()
	criterionChanges.WithLabelValues(criterion).Inc()
}
