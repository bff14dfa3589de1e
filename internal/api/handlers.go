package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/models"
	"github.com/kdimtricp/humetube/internal/notify"
	"github.com/kdimtricp/humetube/internal/pipeline"
)

// Pipeline is the part of pipeline.Service the handlers use.
type Pipeline interface {
	SubmitBatch(ctx context.Context, snapshots []models.Snapshot) (string, error)
	Reconcile(ctx context.Context, jobID string, results []ai.ImageResult) ([]string, error)
	Analyze(ctx context.Context, videoID string) (*models.Analysis, error)
	GetAnalysis(ctx context.Context, videoID string) (*models.Analysis, error)
}

const defaultMaxBodySize = 32 << 20

type App struct {
	Pipeline    Pipeline
	Hub         *notify.Hub
	MaxBodySize int64
}

type snapshotRequest struct {
	DataURI          string   `json:"dataURI"`
	ImagePayload     string   `json:"imagePayload"`
	CurrentTimestamp *float64 `json:"currentTimestamp"`
	VideoID          string   `json:"videoID"`
}

type ingestSnapshotsRequest struct {
	Snapshots []snapshotRequest `json:"snapshots"`
}

type ingestSnapshotsResponse struct {
	IngestionID string `json:"ingestionID"`
}

type ingestPredictionsResponse struct {
	VideoIDs []string `json:"videoIDs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) IngestSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	var req ingestSnapshotsRequest
	if err := app.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshots := make([]models.Snapshot, 0, len(req.Snapshots))
	for i, s := range req.Snapshots {
		if s.CurrentTimestamp == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("snapshot %d: currentTimestamp is required", i))
			return
		}
		ts := math.Floor(*s.CurrentTimestamp)
		if ts < 0 || ts > pipeline.MaxTimestamp {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("snapshot %d: currentTimestamp out of range", i))
			return
		}

		payload := s.DataURI
		if payload == "" {
			payload = s.ImagePayload
		}

		snapshots = append(snapshots, models.Snapshot{
			VideoID:      s.VideoID,
			Timestamp:    int64(ts),
			ImagePayload: payload,
		})
	}

	jobID, err := app.Pipeline.SubmitBatch(r.Context(), snapshots)
	if err != nil {
		status := submitStatus(err)
		if status >= 500 {
			log.Printf("[INGEST] Ingestion of %d snapshot(s) failed: %v", len(snapshots), err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ingestSnapshotsResponse{IngestionID: jobID})
}

// IngestPredictionsHandler receives the provider callback. It answers only
// after every prediction is stored, so a failure makes the provider retry.
func (app *App) IngestPredictionsHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.bodyLimit())
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	job, err := ai.ParseCallback(body)
	if err != nil {
		log.Printf("[RECONCILE] Rejected callback: %v", err)
		status := http.StatusBadRequest
		if errors.Is(err, ai.ErrJobFailed) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	videoIDs, err := app.Pipeline.Reconcile(r.Context(), job.JobID, job.Results)
	if err != nil {
		status := reconcileStatus(err)
		if status >= 500 {
			log.Printf("[RECONCILE] Job %s failed: %v", job.JobID, err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ingestPredictionsResponse{VideoIDs: videoIDs})
}

func (app *App) GetEmotionsHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	analysis, err := app.Pipeline.GetAnalysis(r.Context(), videoID)
	if err != nil {
		writeError(w, analysisStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// AnalyzeHandler rebuilds the timeline immediately instead of waiting for
// the scheduler.
func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	analysis, err := app.Pipeline.Analyze(r.Context(), videoID)
	if err != nil {
		status := analysisStatus(err)
		if status >= 500 {
			log.Printf("[ANALYZE] Analysis of %s failed: %v", videoID, err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (app *App) LiveEmotionsHandler(w http.ResponseWriter, r *http.Request) {
	if app.Hub == nil {
		writeError(w, http.StatusNotFound, "live updates are disabled")
		return
	}

	videoID := chi.URLParam(r, "videoID")
	current, err := app.Pipeline.GetAnalysis(r.Context(), videoID)
	if err != nil && !errors.Is(err, pipeline.ErrAnalysisNotFound) {
		writeError(w, analysisStatus(err), err.Error())
		return
	}

	app.Hub.ServeVideo(w, r, videoID, current)
}

func (app *App) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, app.bodyLimit())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

func (app *App) bodyLimit() int64 {
	if app.MaxBodySize > 0 {
		return app.MaxBodySize
	}
	return defaultMaxBodySize
}

func submitStatus(err error) int {
	var orphaned *pipeline.OrphanedJobError
	var submitErr *ai.SubmitError
	switch {
	case errors.Is(err, pipeline.ErrInvalidBatch):
		return http.StatusBadRequest
	case errors.As(err, &orphaned):
		return http.StatusInternalServerError
	case ai.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &submitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func reconcileStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrResultCountMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func analysisStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrAnalysisNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidVideoID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
