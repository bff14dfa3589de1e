package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/models"
	"github.com/kdimtricp/humetube/internal/storage"
)

// Reconcile attaches the provider's results for jobID to the snapshots that
// produced them, stores one Prediction per snapshot with a detected face and
// schedules reanalysis for every affected video.
//
// Result i belongs to batch entry i. Any mismatch between the two aborts the
// whole reconciliation before anything is written.
func (s *Service) Reconcile(ctx context.Context, jobID string, results []ai.ImageResult) ([]string, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: empty job ID", ErrUnknownJob)
	}

	batch, err := s.loadBatchContext(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if len(results) != len(batch.Entries) {
		log.Printf("[RECONCILE] Job %s returned %d result(s) for %d snapshot(s), aborting", jobID, len(results), len(batch.Entries))
		return nil, fmt.Errorf("%w: job %s has %d snapshot(s) but %d result(s)",
			ErrResultCountMismatch, jobID, len(batch.Entries), len(results))
	}

	results = orderByFilename(results)

	entries := make([]storage.Entry, 0, len(results))
	affected := make(map[string]bool)
	for i, result := range results {
		entry := batch.Entries[i]

		best, ok := ai.DominantEmotion(result.Detections)
		if !ok {
			if len(result.Errors) > 0 {
				log.Printf("[RECONCILE] Job %s snapshot %d (%s @ %ds): provider error: %s",
					jobID, i, entry.VideoID, entry.Timestamp, strings.Join(result.Errors, "; "))
			} else {
				log.Printf("[RECONCILE] Job %s snapshot %d (%s @ %ds): no face detected", jobID, i, entry.VideoID, entry.Timestamp)
			}
			continue
		}

		prediction := models.Prediction{
			VideoID:    entry.VideoID,
			Timestamp:  entry.Timestamp,
			Emotion:    best.Name,
			Confidence: best.Score,
			JobID:      jobID,
		}
		data, err := json.Marshal(prediction)
		if err != nil {
			return nil, fmt.Errorf("encoding prediction: %w", err)
		}

		entries = append(entries, storage.Entry{
			Key:   predictionKey(entry.VideoID, entry.Timestamp, jobID, i),
			Value: data,
		})
		affected[entry.VideoID] = true
	}

	if len(entries) > 0 {
		if err := s.store.SetAll(ctx, entries); err != nil {
			return nil, fmt.Errorf("storing predictions for job %s: %w", jobID, err)
		}
	}

	videoIDs := make([]string, 0, len(affected))
	for videoID := range affected {
		videoIDs = append(videoIDs, videoID)
	}
	sort.Strings(videoIDs)

	log.Printf("[RECONCILE] Job %s: stored %d prediction(s) for %d video(s)", jobID, len(entries), len(videoIDs))

	if s.scheduler != nil {
		for _, videoID := range videoIDs {
			if err := s.scheduler.Enqueue(ctx, videoID, s.config.ReanalysisDelay); err != nil {
				return nil, fmt.Errorf("scheduling reanalysis of %s: %w", videoID, err)
			}
		}
	}

	if !s.config.KeepBatchContext {
		if err := s.store.Delete(ctx, snapshotKey(jobID)); err != nil {
			log.Printf("[RECONCILE] Failed to delete batch context of job %s: %v", jobID, err)
		}
	}

	return videoIDs, nil
}

func (s *Service) loadBatchContext(ctx context.Context, jobID string) (*models.BatchContext, error) {
	data, err := s.store.Get(ctx, snapshotKey(jobID))
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("[RECONCILE] No batch context for job %s", jobID)
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading batch context for job %s: %w", jobID, err)
	}

	var batch models.BatchContext
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decoding batch context for job %s: %w", jobID, err)
	}
	return &batch, nil
}

// orderByFilename puts results back in submission order using the index the
// provider echoes in each filename. If any filename does not carry a usable
// index, the provider order is trusted as is.
func orderByFilename(results []ai.ImageResult) []ai.ImageResult {
	ordered := make([]ai.ImageResult, len(results))
	seen := make([]bool, len(results))
	for _, r := range results {
		index, ok := ai.ParseSnapshotFilename(r.Filename)
		if !ok || index >= len(results) || seen[index] {
			return results
		}
		ordered[index] = r
		seen[index] = true
	}
	return ordered
}
