package models

import "time"

type Prediction struct {
	VideoID    string  `json:"videoID"`
	Timestamp  int64   `json:"timestamp"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	JobID      string  `json:"jobID,omitempty"`
}

type EmotionPoint struct {
	Timestamp int64   `json:"timestamp"`
	Name      string  `json:"name"`
	Emoji     string  `json:"emoji"`
	Amplitude float64 `json:"amplitude"`
}

// Analysis is the emotion timeline of one video. It is always rebuilt from
// scratch and replaces the previous one.
type Analysis struct {
	VideoID           string         `json:"videoID"`
	Emotions          []EmotionPoint `json:"emotions"`
	LastUpdatedAt     time.Time      `json:"lastUpdatedAt"`
	SnapshotsAnalyzed int            `json:"snapshotsAnalyzed"`
}
