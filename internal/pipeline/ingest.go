package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/models"
)

// SubmitBatch validates the snapshots, submits their images as one inference
// job and stores the batch context under the returned job ID.
//
// Nothing is written if validation or submission fails, so the caller may
// retry. A storage failure after submission returns *OrphanedJobError.
func (s *Service) SubmitBatch(ctx context.Context, snapshots []models.Snapshot) (string, error) {
	if err := s.validateBatch(snapshots); err != nil {
		return "", err
	}

	images := make([]ai.Image, 0, len(snapshots))
	for i, snap := range snapshots {
		img, err := s.decoder.Decode(ctx, snap.ImagePayload, i)
		if err != nil {
			return "", fmt.Errorf("%w: snapshot %d: decoding image: %v", ErrInvalidBatch, i, err)
		}
		images = append(images, img)
	}

	jobID, err := s.provider.CreateJob(ctx, images)
	if err != nil {
		log.Printf("[INGEST] Failed to submit batch of %d snapshot(s): %v", len(snapshots), err)
		return "", fmt.Errorf("submitting inference job: %w", err)
	}

	batch := models.NewBatchContext(jobID, snapshots)
	data, err := json.Marshal(batch)
	if err == nil {
		err = s.store.Set(ctx, snapshotKey(jobID), data)
	}
	if err != nil {
		log.Printf("[ORPHANED-JOB] Job %s (%d snapshot(s)) exists at the provider but its batch context was not stored: %v",
			jobID, len(snapshots), err)
		return "", &OrphanedJobError{JobID: jobID, Err: err}
	}

	log.Printf("[INGEST] Submitted job %s with %d snapshot(s)", jobID, len(snapshots))
	return jobID, nil
}

func (s *Service) validateBatch(snapshots []models.Snapshot) error {
	if len(snapshots) == 0 {
		return fmt.Errorf("%w: no snapshots", ErrInvalidBatch)
	}
	if len(snapshots) > s.config.MaxSnapshotsPerBatch {
		return fmt.Errorf("%w: %d snapshots exceeds the limit of %d", ErrInvalidBatch, len(snapshots), s.config.MaxSnapshotsPerBatch)
	}

	for i, snap := range snapshots {
		if strings.TrimSpace(snap.VideoID) == "" {
			return fmt.Errorf("%w: snapshot %d: missing videoID", ErrInvalidBatch, i)
		}
		if snap.Timestamp < 0 || snap.Timestamp > MaxTimestamp {
			return fmt.Errorf("%w: snapshot %d: timestamp %d out of range", ErrInvalidBatch, i, snap.Timestamp)
		}
		if strings.TrimSpace(snap.ImagePayload) == "" {
			return fmt.Errorf("%w: snapshot %d: missing image payload", ErrInvalidBatch, i)
		}
	}
	return nil
}
