package pipeline

import (
	"fmt"
	"net/url"
)

// Key layout. IDs are path-escaped so a '/' inside an ID cannot make one
// video's prefix match another's.
//
//	snapshots/<jobID>
//	predictions/<videoID>/<timestamp:012d>/<jobID>/<index:04d>
//	analyses/<videoID>
const (
	SnapshotsPrefix   = "snapshots/"
	PredictionsPrefix = "predictions/"
	AnalysesPrefix    = "analyses/"

	// MaxTimestamp is the largest snapshot timestamp, in seconds, that still
	// fits the fixed-width key encoding.
	MaxTimestamp = 999_999_999_999
)

type Namespace struct {
	Name   string
	Prefix string
}

// Namespaces lists every key prefix the pipeline writes to.
var Namespaces = []Namespace{
	{Name: "batch contexts", Prefix: SnapshotsPrefix},
	{Name: "predictions", Prefix: PredictionsPrefix},
	{Name: "analyses", Prefix: AnalysesPrefix},
}

func snapshotKey(jobID string) string {
	return SnapshotsPrefix + url.PathEscape(jobID)
}

func predictionPrefix(videoID string) string {
	return PredictionsPrefix + url.PathEscape(videoID) + "/"
}

// predictionKey is deterministic per (job, position), so a redelivered
// callback overwrites its own predictions instead of duplicating them.
func predictionKey(videoID string, timestamp int64, jobID string, index int) string {
	return fmt.Sprintf("%s%012d/%s/%04d", predictionPrefix(videoID), timestamp, url.PathEscape(jobID), index)
}

func analysisKey(videoID string) string {
	return AnalysesPrefix + url.PathEscape(videoID)
}
