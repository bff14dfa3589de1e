package models

import "time"

// Snapshot is one captured frame and the playback position it was taken at.
// It only lives until its batch is submitted.
type Snapshot struct {
	VideoID      string
	Timestamp    int64
	ImagePayload string
}

type BatchEntry struct {
	VideoID   string `json:"videoID"`
	Timestamp int64  `json:"timestamp"`
}

// BatchContext links a provider job to the snapshots it was created from.
// Entries keep submission order; result i of the job belongs to Entries[i].
type BatchContext struct {
	JobID       string       `json:"jobID"`
	Entries     []BatchEntry `json:"entries"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

func NewBatchContext(jobID string, snapshots []Snapshot) *BatchContext {
	entries := make([]BatchEntry, 0, len(snapshots))
	for _, s := range snapshots {
		entries = append(entries, BatchEntry{
			VideoID:   s.VideoID,
			Timestamp: s.Timestamp,
		})
	}

	return &BatchContext{
		JobID:       jobID,
		Entries:     entries,
		SubmittedAt: time.Now().UTC(),
	}
}
