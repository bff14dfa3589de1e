package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/models"
	"github.com/kdimtricp/humetube/internal/storage"
)

var (
	ErrInvalidBatch        = errors.New("invalid snapshot batch")
	ErrInvalidVideoID      = errors.New("invalid video ID")
	ErrUnknownJob          = errors.New("unknown ingestion job")
	ErrResultCountMismatch = errors.New("result count does not match batch size")
	ErrAnalysisNotFound    = errors.New("analysis not found")
)

// OrphanedJobError means the provider accepted a job but its batch context
// could not be stored, so the job's results can never be attributed.
type OrphanedJobError struct {
	JobID string
	Err   error
}

func (e *OrphanedJobError) Error() string {
	return fmt.Sprintf("job %s was submitted but its batch context was not stored: %v", e.JobID, e.Err)
}

func (e *OrphanedJobError) Unwrap() error {
	return e.Err
}

type ImageDecoder interface {
	Decode(ctx context.Context, payload string, index int) (ai.Image, error)
}

type ReanalysisScheduler interface {
	Enqueue(ctx context.Context, videoID string, delay time.Duration) error
}

type AnalysisNotifier interface {
	Publish(analysis *models.Analysis)
}

type Config struct {
	MaxSnapshotsPerBatch int
	ReanalysisDelay      time.Duration
	KeepBatchContext     bool
}

func NewConfig() Config {
	return Config{
		MaxSnapshotsPerBatch: 100,
		ReanalysisDelay:      10 * time.Minute,
		KeepBatchContext:     true,
	}
}

// Service runs the ingestion, reconciliation and aggregation steps. All of
// its collaborators are passed in; it holds no global state.
type Service struct {
	store     storage.Store
	provider  ai.InferenceProvider
	decoder   ImageDecoder
	scheduler ReanalysisScheduler
	notifier  AnalysisNotifier
	config    Config
	now       func() time.Time
}

// NewService wires a Service. scheduler and notifier may be nil.
func NewService(
	store storage.Store,
	provider ai.InferenceProvider,
	decoder ImageDecoder,
	scheduler ReanalysisScheduler,
	notifier AnalysisNotifier,
	config Config,
) *Service {
	defaults := NewConfig()
	if config.MaxSnapshotsPerBatch <= 0 {
		config.MaxSnapshotsPerBatch = defaults.MaxSnapshotsPerBatch
	}
	if config.ReanalysisDelay <= 0 {
		config.ReanalysisDelay = defaults.ReanalysisDelay
	}

	return &Service{
		store:     store,
		provider:  provider,
		decoder:   decoder,
		scheduler: scheduler,
		notifier:  notifier,
		config:    config,
		now:       time.Now,
	}
}
