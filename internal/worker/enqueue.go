package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/repository"
	"github.com/google/uuid"
)

// Job types. Each value is the jobs.job_type of the rows its handler claims.
const (
	JobTypeGenerateReport = "generate_report"
)

// Higher priorities are claimed first. Reports requested from the API
// run at PriorityHigh.
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// Queue inserts jobs. *repository.Queries satisfies it.
type Queue interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption adjusts the row inserted by EnqueueJob.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// EnqueueJob marshals payload and inserts a pending job of jobType, due now
// with three attempts unless opts say otherwise.
func EnqueueJob(
	ctx context.Context,
	queue Queue,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		ID:          uuid.New(),
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queue.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueGenerateReport enqueues a job that renders and stores the report
// of an inspection in the given theme.
func EnqueueGenerateReport(
	ctx context.Context,
	queue Queue,
	inspectionID uuid.UUID,
	theme domain.ReportTheme,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := domain.GenerateReportPayload{
		InspectionID: inspectionID,
		Theme:        theme,
	}

	return EnqueueJob(ctx, queue, JobTypeGenerateReport, payload, opts...)
}
