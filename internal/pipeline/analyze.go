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

// Analyze rebuilds the emotion timeline of a video from every stored
// prediction and replaces the stored Analysis.
//
// The scan and the final write are not one transaction: a prediction stored
// while Analyze runs may be missing from its result. The reanalysis scheduled
// for that prediction picks it up. LastUpdatedAt is taken before the scan so
// it never claims to cover predictions the scan could not have seen.
func (s *Service) Analyze(ctx context.Context, videoID string) (*models.Analysis, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, ErrInvalidVideoID
	}

	startedAt := s.now().UTC()

	entries, err := s.store.List(ctx, predictionPrefix(videoID))
	if err != nil {
		return nil, fmt.Errorf("listing predictions for %s: %w", videoID, err)
	}

	best := make(map[int64]models.Prediction)
	for _, entry := range entries {
		var p models.Prediction
		if err := json.Unmarshal(entry.Value, &p); err != nil {
			log.Printf("[ANALYZE] Skipping unreadable prediction %s: %v", entry.Key, err)
			continue
		}
		if !ai.IsKnownEmotion(p.Emotion) {
			log.Printf("[ANALYZE] Skipping prediction %s with unknown emotion %q", entry.Key, p.Emotion)
			continue
		}

		if current, ok := best[p.Timestamp]; !ok || p.Confidence > current.Confidence {
			best[p.Timestamp] = p
		}
	}

	emotions := make([]models.EmotionPoint, 0, len(best))
	for _, p := range best {
		emoji, _ := ai.EmojiFor(p.Emotion)
		emotions = append(emotions, models.EmotionPoint{
			Timestamp: p.Timestamp,
			Name:      p.Emotion,
			Emoji:     emoji,
			Amplitude: p.Confidence,
		})
	}
	sort.Slice(emotions, func(i, j int) bool {
		return emotions[i].Timestamp < emotions[j].Timestamp
	})

	analysis := &models.Analysis{
		VideoID:           videoID,
		Emotions:          emotions,
		LastUpdatedAt:     startedAt,
		SnapshotsAnalyzed: len(entries),
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}
	if err := s.store.Set(ctx, analysisKey(videoID), data); err != nil {
		return nil, fmt.Errorf("storing analysis for %s: %w", videoID, err)
	}

	log.Printf("[ANALYZE] Video %s: %d prediction(s) -> %d timeline point(s)", videoID, len(entries), len(emotions))

	if s.notifier != nil {
		s.notifier.Publish(analysis)
	}

	return analysis, nil
}

// GetAnalysis returns the latest stored Analysis, or ErrAnalysisNotFound if
// the video was never analyzed.
func (s *Service) GetAnalysis(ctx context.Context, videoID string) (*models.Analysis, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, ErrInvalidVideoID
	}

	data, err := s.store.Get(ctx, analysisKey(videoID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis for %s: %w", videoID, err)
	}

	var analysis models.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("decoding analysis for %s: %w", videoID, err)
	}
	return &analysis, nil
}
