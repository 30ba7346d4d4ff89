package metrics

import "time"

// JobCompleted records a successful job completion
func JobCompleted(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job failure. Retryable failures also count a retry.
func JobFailed(jobType string, willRetry bool) {
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
	if willRetry {
		JobRetriesTotal.WithLabelValues(jobType).Inc()
	}
}

// ObserveReportStage records how long a report build stage took.
func ObserveReportStage(stage string, start time.Time) {
	ReportBuildDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
