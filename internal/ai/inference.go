package ai

import (
	"context"
	"time"
)

// InferenceProvider submits images for asynchronous facial-emotion inference.
// Results arrive later through the callback URL, one ImageResult per submitted
// image, in submission order.
type InferenceProvider interface {
	CreateJob(ctx context.Context, images []Image) (string, error)
}

type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type EmotionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ImageResult holds every emotion score detected in one image, across all
// faces, in provider order.
type ImageResult struct {
	Filename   string         `json:"filename,omitempty"`
	Detections []EmotionScore `json:"detections"`
	// Errors the provider reported for this image. An image with errors and
	// no detections failed, it did not merely show no face.
	Errors []string `json:"errors,omitempty"`
}

type Config struct {
	HumeAPIKey        string
	HumeAPIURL        string
	CallbackURL       string
	SubmitTimeout     time.Duration
	SubmitMaxAttempts int
	RetryBackoff      time.Duration
}

func NewConfig() *Config {
	return &Config{
		HumeAPIURL:        DefaultHumeAPIURL,
		SubmitTimeout:     30 * time.Second,
		SubmitMaxAttempts: 3,
		RetryBackoff:      time.Second,
	}
}
