package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

// Config holds configuration for retry with backoff.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	// Default: 10ms
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 500ms
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier applied to backoff after each attempt.
	// Default: 2.0
	BackoffMultiplier float64

	// JitterFraction is the fraction of backoff to randomize (0.0 to 1.0).
	// Default: 0.2
	JitterFraction float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.2,
	}
}

// Option modifies a Config.
type Option func(*Config)

// Attempts sets the maximum number of attempts. Values below 1 become 1.
func Attempts(n int) Option {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.MaxAttempts = n
	}
}

// Backoff sets the initial and maximum backoff.
func Backoff(initial, max time.Duration) Option {
	return func(c *Config) {
		c.InitialBackoff = initial
		c.MaxBackoff = max
	}
}

// NoJitter disables backoff randomization.
func NoJitter() Option {
	return func(c *Config) {
		c.JitterFraction = 0
	}
}

// NewConfig returns DefaultConfig with opts applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Updater is the part of a job store UpdateWithRetry needs. Both core.Store
// and the service layer satisfy it.
type Updater interface {
	Get(ctx context.Context, jobID string) (*core.Job, error)
	Update(ctx context.Context, jobID string, expectedVersion int64, mutation core.Mutation) (*core.Job, error)
}

// ErrTooMuchContention wraps the last conflict once every attempt lost its
// version race.
var ErrTooMuchContention = errors.New("jobs: too much contention")

// UpdateWithRetry loads the job, applies mutation against the version it
// read, and repeats from a fresh read whenever the update loses a version
// race. Any error other than a conflict is returned immediately, including
// core.ErrNotFound.
func UpdateWithRetry(ctx context.Context, store Updater, jobID string, mutation core.Mutation, cfg Config) (*core.Job, error) {
	var updated *core.Job

	err := Do(ctx, cfg, core.IsConcurrentModification, func() error {
		current, err := store.Get(ctx, jobID)
		if err != nil {
			return err
		}
		updated, err = store.Update(ctx, jobID, current.Version, mutation)
		return err
	})
	if core.IsConcurrentModification(err) {
		return nil, fmt.Errorf("%w updating %q after %d attempts: %w", ErrTooMuchContention, jobID, cfg.MaxAttempts, err)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Do executes operation with exponential backoff while retryable reports
// true for its error. It respects context cancellation and returns the last
// error if all attempts fail.
func Do(ctx context.Context, config Config, retryable func(error) bool, operation func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= max(config.MaxAttempts, 1); attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		// Don't retry on context cancellation
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		jitter := time.Duration(float64(backoff) * config.JitterFraction * (rand.Float64()*2 - 1))
		sleepDuration := backoff + jitter
		if sleepDuration < 0 {
			sleepDuration = backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepDuration):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}
