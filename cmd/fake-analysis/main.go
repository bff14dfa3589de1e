package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/models"
)

// fake-analysis prints a random Analysis, handy for building a timeline UI
// without a Hume account.
func main() {
	var (
		videoID  = flag.String("id", "dQw4w9WgXcQ", "Video ID")
		duration = flag.Int("duration", 212, "Video duration in seconds")
		interval = flag.Int("interval", 5, "Seconds between points")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	if *interval <= 0 || *duration < 0 {
		log.Fatal("interval must be positive and duration non-negative")
	}

	analysis := fakeAnalysis(rand.New(rand.NewSource(*seed)), *videoID, *duration, *interval)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(analysis); err != nil {
		log.Fatal(err)
	}
}

func fakeAnalysis(rng *rand.Rand, videoID string, duration, interval int) *models.Analysis {
	names := ai.EmotionNames()
	emotions := make([]models.EmotionPoint, 0, duration/interval+1)
	for ts := 0; ts <= duration; ts += interval {
		name := names[rng.Intn(len(names))]
		emoji, _ := ai.EmojiFor(name)
		emotions = append(emotions, models.EmotionPoint{
			Timestamp: int64(ts),
			Name:      name,
			Emoji:     emoji,
			Amplitude: rng.Float64(),
		})
	}

	return &models.Analysis{
		VideoID:           videoID,
		Emotions:          emotions,
		LastUpdatedAt:     time.Now().UTC(),
		SnapshotsAnalyzed: len(emotions),
	}
}
