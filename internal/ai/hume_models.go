package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedPayload = errors.New("malformed provider payload")
	ErrJobFailed        = errors.New("inference job did not complete")
)

// JobResult is a validated provider callback.
type JobResult struct {
	JobID   string
	Status  string
	Results []ImageResult
}

type jobCallback struct {
	JobID       string             `json:"job_id"`
	Status      string             `json:"status"`
	Predictions []sourcePrediction `json:"predictions"`
}

type sourcePrediction struct {
	Source  *predictionSource `json:"source"`
	Results *sourceResults    `json:"results"`
	Error   string            `json:"error"`
}

type predictionSource struct {
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type sourceResults struct {
	Predictions []filePrediction  `json:"predictions"`
	Errors      []json.RawMessage `json:"errors"`
}

type filePrediction struct {
	File     string     `json:"file"`
	FileType string     `json:"file_type"`
	Models   fileModels `json:"models"`
}

type fileModels struct {
	Face *faceModel `json:"face"`
}

type faceModel struct {
	GroupedPredictions []groupedPrediction `json:"grouped_predictions"`
}

type groupedPrediction struct {
	ID          string           `json:"id"`
	Predictions []facePrediction `json:"predictions"`
}

type facePrediction struct {
	Frame    int            `json:"frame"`
	Time     *float64       `json:"time"`
	Prob     float64        `json:"prob"`
	Box      *faceBox       `json:"box"`
	Emotions []EmotionScore `json:"emotions"`
}

type faceBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ParseCallback validates a job-completion callback body and flattens it to
// one ImageResult per submitted image, keeping provider order.
func ParseCallback(body []byte) (*JobResult, error) {
	var cb jobCallback
	if err := decodeStrict(body, &cb); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cb.JobID) == "" {
		return nil, fmt.Errorf("%w: missing job_id", ErrMalformedPayload)
	}

	if cb.Status != "" && !strings.EqualFold(cb.Status, "COMPLETED") {
		return nil, fmt.Errorf("%w: job %s has status %s", ErrJobFailed, cb.JobID, cb.Status)
	}

	if cb.Predictions == nil {
		return nil, fmt.Errorf("%w: missing predictions", ErrMalformedPayload)
	}

	results, err := flattenSources(cb.Predictions)
	if err != nil {
		return nil, err
	}

	return &JobResult{
		JobID:   cb.JobID,
		Status:  cb.Status,
		Results: results,
	}, nil
}

// ParseJobPredictions validates the body of GET /batch/jobs/{id}/predictions.
func ParseJobPredictions(body []byte) ([]ImageResult, error) {
	var sources []sourcePrediction
	if err := decodeStrict(body, &sources); err != nil {
		return nil, err
	}
	return flattenSources(sources)
}

func decodeStrict(body []byte, v interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON document", ErrMalformedPayload)
	}
	return nil
}

func flattenSources(sources []sourcePrediction) ([]ImageResult, error) {
	results := make([]ImageResult, 0, len(sources))
	for i, src := range sources {
		if src.Results == nil && strings.TrimSpace(src.Error) == "" {
			return nil, fmt.Errorf("%w: source %d has neither results nor error", ErrMalformedPayload, i)
		}

		result := ImageResult{Detections: []EmotionScore{}}
		if src.Source != nil {
			result.Filename = src.Source.Filename
		}
		if src.Error != "" {
			result.Errors = append(result.Errors, src.Error)
		}

		if src.Results != nil {
			for _, raw := range src.Results.Errors {
				result.Errors = append(result.Errors, providerErrorMessage(raw))
			}
			for _, file := range src.Results.Predictions {
				if result.Filename == "" {
					result.Filename = file.File
				}
				if file.Models.Face == nil {
					continue
				}
				for _, group := range file.Models.Face.GroupedPredictions {
					for _, face := range group.Predictions {
						for _, emotion := range face.Emotions {
							if err := validateScore(emotion); err != nil {
								return nil, fmt.Errorf("%w: source %d: %v", ErrMalformedPayload, i, err)
							}
							result.Detections = append(result.Detections, emotion)
						}
					}
				}
			}
		}

		results = append(results, result)
	}
	return results, nil
}

// providerErrorMessage extracts the message of a results.errors entry, which
// is either a string or an object with a "message" field.
func providerErrorMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var obj struct {
		File    string `json:"file"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		if obj.File != "" {
			return obj.File + ": " + obj.Message
		}
		return obj.Message
	}
	return string(raw)
}

func validateScore(e EmotionScore) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("emotion with empty name")
	}
	if e.Score < 0 || e.Score > 1 {
		return fmt.Errorf("emotion %s has score %v outside [0,1]", e.Name, e.Score)
	}
	return nil
}
