package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"concurrency too low", func(c *Config) { c.Concurrency = 0 }, true},
		{"concurrency too high", func(c *Config) { c.Concurrency = 101 }, true},
		{"poll interval too short", func(c *Config) { c.PollInterval = 500 * time.Millisecond }, true},
		{"job timeout too short", func(c *Config) { c.JobTimeout = 0 }, true},
		{"stale threshold below job timeout", func(c *Config) {
			c.JobTimeout = 20 * time.Minute
			c.StaleJobThreshold = 10 * time.Minute
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "wrapped permanent error",
			err:  errors.Join(errors.New("context"), NewPermanentError(context.Canceled)),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Enqueue
// =============================================================================

type fakeQueue struct {
	got repository.EnqueueJobParams
	err error
}

func (q *fakeQueue) EnqueueJob(_ context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	q.got = arg
	if q.err != nil {
		return repository.Job{}, q.err
	}
	return repository.Job{ID: arg.ID, JobType: arg.JobType, Payload: arg.Payload, Status: "pending"}, nil
}

func TestEnqueueGenerateReport(t *testing.T) {
	q := &fakeQueue{}
	inspectionID := uuid.New()

	job, err := EnqueueGenerateReport(context.Background(), q, inspectionID, domain.ReportThemePremium,
		WithPriority(PriorityHigh), WithMaxAttempts(5))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, JobTypeGenerateReport, q.got.JobType)
	assert.Equal(t, int32(PriorityHigh), q.got.Priority)
	assert.Equal(t, int32(5), q.got.MaxAttempts)

	var payload domain.GenerateReportPayload
	require.NoError(t, json.Unmarshal(q.got.Payload, &payload))
	assert.Equal(t, inspectionID, payload.InspectionID)
	assert.Equal(t, domain.ReportThemePremium, payload.Theme)

	q.err = errors.New("connection refused")
	_, err = EnqueueGenerateReport(context.Background(), q, inspectionID, domain.ReportThemeStandard)
	assert.ErrorContains(t, err, "enqueue job")
}

// =============================================================================
// Processing
// =============================================================================

var jobColumns = []string{
	"id", "job_type", "payload", "status", "priority", "attempts", "max_attempts",
	"scheduled_at", "started_at", "completed_at", "error_message", "created_at",
}

func newTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w, err := New(db, repository.New(db), DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return w, mock
}

func expectDequeue(mock sqlmock.Sqlmock, id uuid.UUID, jobType string, payload []byte) {
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows(jobColumns).AddRow(
			id.String(), jobType, payload, "pending", int64(PriorityNormal), int64(0), int64(3),
			now, nil, nil, nil, now,
		))
	mock.ExpectExec("SET status = 'running'").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestWorker_ProcessNextJob(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	payload := []byte(`{"inspection_id":"6f1c2a38-9d4e-4f57-8c7b-2b1e5d9a0c11","theme":"standard"}`)

	t.Run("completed", func(t *testing.T) {
		w, mock := newTestWorker(t)
		id := uuid.New()

		var got []byte
		w.Register(HandlerFunc(JobTypeGenerateReport, func(_ context.Context, p []byte) error {
			got = p
			return nil
		}))

		expectDequeue(mock, id, JobTypeGenerateReport, payload)
		mock.ExpectExec("SET status = 'completed'").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, w.processNextJob(ctx, logger))
		assert.JSONEq(t, string(payload), string(got))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retryable failure", func(t *testing.T) {
		w, mock := newTestWorker(t)
		id := uuid.New()
		w.Register(HandlerFunc(JobTypeGenerateReport, func(context.Context, []byte) error {
			return errors.New("storage unavailable")
		}))

		expectDequeue(mock, id, JobTypeGenerateReport, payload)
		mock.ExpectExec("SET status = CASE WHEN").
			WithArgs(id, "storage unavailable", false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := w.processNextJob(ctx, logger)
		assert.ErrorContains(t, err, "storage unavailable")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("permanent failure", func(t *testing.T) {
		w, mock := newTestWorker(t)
		id := uuid.New()
		w.Register(HandlerFunc(JobTypeGenerateReport, func(context.Context, []byte) error {
			return NewPermanentError(errors.New("inspection not found"))
		}))

		expectDequeue(mock, id, JobTypeGenerateReport, payload)
		mock.ExpectExec("SET status = CASE WHEN").
			WithArgs(id, "inspection not found", true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := w.processNextJob(ctx, logger)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown job type is permanent", func(t *testing.T) {
		w, mock := newTestWorker(t)
		id := uuid.New()

		expectDequeue(mock, id, "send_fax", []byte(`{}`))
		mock.ExpectExec("SET status = CASE WHEN").
			WithArgs(id, sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := w.processNextJob(ctx, logger)
		assert.ErrorContains(t, err, "no handler registered")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue", func(t *testing.T) {
		w, mock := newTestWorker(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectRollback()

		err := w.processNextJob(ctx, logger)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorker_RecoverStaleJobs(t *testing.T) {
	w, mock := newTestWorker(t)

	mock.ExpectExec("SET status = 'pending', started_at = NULL").
		WithArgs(float64(600)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, w.recoverStaleJobs(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
