package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kdimtricp/humetube/internal/models"
	"github.com/kdimtricp/humetube/internal/pipeline"
)

// Policy decides whether a due reanalysis task actually runs.
type Policy string

const (
	// PolicyRecent skips only when an Analysis exists and is younger than
	// the window. A video without an Analysis is always analyzed.
	PolicyRecent Policy = "recent"
	// PolicyLiteral also skips when no Analysis exists yet, so the first
	// timeline of a video is never built by the scheduler.
	PolicyLiteral Policy = "literal"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyRecent:
		return PolicyRecent, nil
	case PolicyLiteral:
		return PolicyLiteral, nil
	default:
		return "", fmt.Errorf("unknown debounce policy %q (want %q or %q)", s, PolicyRecent, PolicyLiteral)
	}
}

// ShouldAnalyze applies the debounce policy. analysis is nil when the video
// has not been analyzed yet.
func ShouldAnalyze(policy Policy, analysis *models.Analysis, now time.Time, window time.Duration) bool {
	if analysis == nil {
		return policy != PolicyLiteral
	}
	return now.Sub(analysis.LastUpdatedAt) >= window
}

type Analyzer interface {
	Analyze(ctx context.Context, videoID string) (*models.Analysis, error)
	GetAnalysis(ctx context.Context, videoID string) (*models.Analysis, error)
}

type Config struct {
	Window       time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	Policy       Policy
	RetryBackoff time.Duration
}

func NewConfig() Config {
	return Config{
		Window:       10 * time.Minute,
		PollInterval: 5 * time.Second,
		MaxAttempts:  5,
		Policy:       PolicyRecent,
		RetryBackoff: 30 * time.Second,
	}
}

// Worker fires due reanalysis tasks. Delivery is at-least-once: a task is
// deleted only after it was handled, and several workers may share a queue.
type Worker struct {
	queue    *Queue
	analyzer Analyzer
	config   Config
	now      func() time.Time
}

func NewWorker(queue *Queue, analyzer Analyzer, config Config) *Worker {
	defaults := NewConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Policy == "" {
		config.Policy = defaults.Policy
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}

	return &Worker{
		queue:    queue,
		analyzer: analyzer,
		config:   config,
		now:      time.Now,
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[SCHEDULER] Worker started (poll %s, window %s, policy %s)", w.config.PollInterval, w.config.Window, w.config.Policy)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[SCHEDULER] Poll failed: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Printf("[SCHEDULER] Worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce handles every task that is due and returns how many were handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.queue.Due(ctx, w.now())
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		if err := w.Handle(ctx, task); err != nil {
			log.Printf("[SCHEDULER] Task %s for %s: %v", task.ID, task.VideoID, err)
			continue
		}
		handled++
	}
	return handled, nil
}

// Handle runs one task and removes it from the queue, or reschedules it when
// the analysis failed and attempts remain.
func (w *Worker) Handle(ctx context.Context, task Task) error {
	runErr := w.process(ctx, task)
	if runErr == nil {
		return w.queue.Complete(ctx, task)
	}

	if task.Attempts+1 >= w.config.MaxAttempts {
		log.Printf("[SCHEDULER] Giving up on %s after %d attempt(s): %v", task.VideoID, task.Attempts+1, runErr)
		if err := w.queue.Complete(ctx, task); err != nil {
			return err
		}
		return runErr
	}

	backoff := retryDelay(w.config.RetryBackoff, task.Attempts)
	log.Printf("[SCHEDULER] Reanalysis of %s failed, retrying in %s: %v", task.VideoID, backoff, runErr)
	if err := w.queue.Retry(ctx, task, backoff); err != nil {
		return fmt.Errorf("rescheduling after %v: %w", runErr, err)
	}
	return runErr
}

// maxRetryDelay bounds the exponential backoff between attempts.
const maxRetryDelay = time.Hour

func retryDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := base
	for i := 0; i < attempts && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay || delay <= 0 {
		return maxRetryDelay
	}
	return delay
}

func (w *Worker) process(ctx context.Context, task Task) error {
	current, err := w.analyzer.GetAnalysis(ctx, task.VideoID)
	if errors.Is(err, pipeline.ErrAnalysisNotFound) {
		current = nil
	} else if err != nil {
		return fmt.Errorf("loading current analysis: %w", err)
	}

	if !ShouldAnalyze(w.config.Policy, current, w.now(), w.config.Window) {
		log.Printf("[SCHEDULER] Skipping reanalysis of %s (policy %s)", task.VideoID, w.config.Policy)
		return nil
	}

	if _, err := w.analyzer.Analyze(ctx, task.VideoID); err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	return nil
}
