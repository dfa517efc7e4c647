// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the gamification engine.
var (
	// Counters.
	PointsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_awarded_total",
			Help: "Total points awarded through the ledger",
		},
		[]string{"source"},
	)

	PointsSpentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_spent_total",
			Help: "Total points spent through the ledger",
		},
	)

	SpendRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spend_rejections_total",
			Help: "Total spend attempts rejected for insufficient balance",
		},
	)

	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total badges awarded",
		},
		[]string{"badge", "condition"},
	)

	QuizSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Total quiz submissions by outcome",
		},
		[]string{"result"}, // 'passed', 'failed', 'cooldown', 'rejected'
	)

	CoursesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courses_completed_total",
			Help: "Total course completions triggered by quiz progress",
		},
	)

	SideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_effect_failures_total",
			Help: "Badge or leaderboard side effects that failed after a point award",
		},
		[]string{"effect"}, // 'badges', 'leaderboard'
	)

	InvariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_invariant_violations_total",
			Help: "Detected divergences between profile balance and ledger sum",
		},
	)

	MaintenanceJobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_job_runs_total",
			Help: "Background maintenance job runs by outcome",
		},
		[]string{"job", "status"}, // job: 'leaderboard_refresh', 'balance_audit'
	)

	// Gauges.
	LeaderboardSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leaderboard_size",
			Help: "Number of ranked entries per leaderboard scope",
		},
		[]string{"scope"},
	)

	ActiveBadgeHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_badge_holders",
			Help: "Current number of holders per badge",
		},
		[]string{"badge"},
	)

	MaintenanceLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maintenance_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last run per maintenance job",
		},
		[]string{"job"},
	)

	// Histograms.
	QuizScorePercentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_score_percentage",
			Help:    "Distribution of scored quiz percentages",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		},
	)

	LeaderboardRecomputeSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaderboard_recompute_seconds",
			Help:    "Duration of full leaderboard recomputations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"scope"},
	)

	MaintenanceJobSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maintenance_job_seconds",
			Help:    "Duration of background maintenance jobs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"job"},
	)
)

// RecordPointsAwarded records a successful ledger award.
func RecordPointsAwarded(source string, points int) {
	PointsAwardedTotal.WithLabelValues(source).Add(float64(points))
}

// RecordPointsSpent records a successful ledger spend.
func RecordPointsSpent(points int) {
	PointsSpentTotal.Add(float64(points))
}

// RecordSpendRejected records a spend rejected for insufficient balance.
func RecordSpendRejected() {
	SpendRejectionsTotal.Inc()
}

// RecordBadgeAwarded records a badge award event.
func RecordBadgeAwarded(badgeName, condition string) {
	BadgesAwardedTotal.WithLabelValues(badgeName, condition).Inc()
}

// SetActiveBadgeHolders sets the number of holders for a badge.
func SetActiveBadgeHolders(badgeName string, count int) {
	ActiveBadgeHolders.WithLabelValues(badgeName).Set(float64(count))
}

// RecordQuizSubmission records a quiz submission outcome.
func RecordQuizSubmission(result string) {
	QuizSubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordCourseCompleted records a course completion.
func RecordCourseCompleted() {
	CoursesCompletedTotal.Inc()
}

// RecordSideEffectFailure records a failed badge or leaderboard side effect.
func RecordSideEffectFailure(effect string) {
	SideEffectFailuresTotal.WithLabelValues(effect).Inc()
}

// RecordInvariantViolation records a balance invariant violation.
func RecordInvariantViolation() {
	InvariantViolationsTotal.Inc()
}

// SetLeaderboardSize sets the entry count for a leaderboard scope.
func SetLeaderboardSize(scope string, size int) {
	LeaderboardSize.WithLabelValues(scope).Set(float64(size))
}

// ObserveQuizScore observes a scored quiz percentage.
func ObserveQuizScore(percentage float64) {
	QuizScorePercentage.Observe(percentage)
}

// ObserveLeaderboardRecompute observes the duration of a scope recomputation.
func ObserveLeaderboardRecompute(scope string, seconds float64) {
	LeaderboardRecomputeSeconds.WithLabelValues(scope).Observe(seconds)
}

// RecordMaintenanceJobRun records a maintenance job outcome.
func RecordMaintenanceJobRun(job, status string) {
	MaintenanceJobRunsTotal.WithLabelValues(job, status).Inc()
}

// ObserveMaintenanceJobDuration observes a maintenance job's duration and
// updates its last-run timestamp.
func ObserveMaintenanceJobDuration(job string, seconds float64) {
	MaintenanceJobSeconds.WithLabelValues(job).Observe(seconds)
	MaintenanceLastRun.WithLabelValues(job).SetToCurrentTime()
}
