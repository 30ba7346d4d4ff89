package worker

import (
	"context"
	"errors"
)

// JobHandler executes one type of background job.
type JobHandler interface {
	// Type is the job_type this handler claims.
	Type() string

	// Handle runs one job. payload is the JSON stored at enqueue time.
	// Returning a PermanentError fails the job without further attempts.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that retrying cannot fix, such as a
// malformed payload or a deleted inspection.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err as a PermanentError.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// HandlerFunc adapts a function to a JobHandler of the given type.
func HandlerFunc(jobType string, fn func(ctx context.Context, payload []byte) error) JobHandler {
	return funcHandler{jobType: jobType, fn: fn}
}

type funcHandler struct {
	jobType string
	fn      func(ctx context.Context, payload []byte) error
}

func (h funcHandler) Type() string { return h.jobType }

func (h funcHandler) Handle(ctx context.Context, payload []byte) error {
	return h.fn(ctx, payload)
}
