package worker

import (
	"fmt"
	"time"
)

// Config tunes the report job worker.
type Config struct {
	// Goroutines polling the jobs table. Default 2.
	Concurrency int

	// Idle delay between polls. Default 5s.
	PollInterval time.Duration

	// Deadline for one Handle call. Reports with many remote photos take
	// the longest. Default 2m.
	JobTimeout time.Duration

	// Grace period Stop waits for in-flight jobs. Default 30s.
	ShutdownTimeout time.Duration

	// Age after which a 'running' job is assumed orphaned and is put back
	// to 'pending' on Start. Default 10m.
	StaleJobThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate rejects out-of-range values. A stale threshold at or below the
// job timeout would requeue jobs that are still running.
func (c Config) Validate() error {
	switch {
	case c.Concurrency < 1 || c.Concurrency > 100:
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	case c.PollInterval < time.Second:
		return fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval)
	case c.JobTimeout < time.Second:
		return fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout)
	case c.ShutdownTimeout < time.Second:
		return fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout)
	case c.StaleJobThreshold < time.Minute:
		return fmt.Errorf("stale job threshold must be at least 1m, got %v", c.StaleJobThreshold)
	case c.StaleJobThreshold <= c.JobTimeout:
		return fmt.Errorf("stale job threshold (%v) must exceed the job timeout (%v)", c.StaleJobThreshold, c.JobTimeout)
	}
	return nil
}
