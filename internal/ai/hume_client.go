package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"time"
)

const DefaultHumeAPIURL = "https://api.hume.ai/v0"

type HumeClient struct {
	apiKey       string
	apiURL       string
	callbackURL  string
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	httpClient   *http.Client
}

func NewHumeClient(config *Config) (*HumeClient, error) {
	if config.HumeAPIKey == "" {
		return nil, fmt.Errorf("Hume API key is required")
	}
	apiURL := config.HumeAPIURL
	if apiURL == "" {
		apiURL = DefaultHumeAPIURL
	}

	timeout := config.SubmitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxAttempts := config.SubmitMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &HumeClient{
		apiKey:       config.HumeAPIKey,
		apiURL:       apiURL,
		callbackURL:  config.CallbackURL,
		timeout:      timeout,
		maxAttempts:  maxAttempts,
		retryBackoff: config.RetryBackoff,
		httpClient:   &http.Client{},
	}, nil
}

// SubmitError reports a job submission that did not produce a job ID.
type SubmitError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *SubmitError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Hume job submission failed after %d attempt(s) with status %d: %v", e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("Hume job submission failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

type jobRequest struct {
	Models      jobModels `json:"models"`
	CallbackURL string    `json:"callback_url,omitempty"`
}

type jobModels struct {
	Face struct{} `json:"face"`
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

// CreateJob uploads the images as one batch job. The API takes no idempotency
// key, so only failures that cannot have created a job upstream are retried.
func (c *HumeClient) CreateJob(ctx context.Context, images []Image) (string, error) {
	if len(images) == 0 {
		return "", fmt.Errorf("no images to submit")
	}
	if c.callbackURL == "" {
		return "", fmt.Errorf("callback URL is required to submit jobs")
	}

	body, contentType, err := c.buildJobRequest(images)
	if err != nil {
		return "", err
	}

	var (
		lastErr    error
		lastStatus int
		attempts   int
	)
	for attempts = 1; attempts <= c.maxAttempts; attempts++ {
		jobID, status, retry, err := c.createJobOnce(ctx, body, contentType)
		if err == nil {
			log.Printf("[HUME] Created job %s with %d image(s)", jobID, len(images))
			return jobID, nil
		}

		lastErr, lastStatus = err, status
		if !retry || attempts == c.maxAttempts {
			break
		}

		wait := c.retryBackoff * time.Duration(attempts)
		log.Printf("[HUME] Job submission attempt %d/%d failed, retrying in %v: %v", attempts, c.maxAttempts, wait, err)

		select {
		case <-ctx.Done():
			return "", &SubmitError{StatusCode: lastStatus, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}

	if attempts > c.maxAttempts {
		attempts = c.maxAttempts
	}
	return "", &SubmitError{StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

func (c *HumeClient) buildJobRequest(images []Image) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	jsonPart, err := json.Marshal(jobRequest{CallbackURL: c.callbackURL})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal job request: %w", err)
	}
	if err := writer.WriteField("json", string(jsonPart)); err != nil {
		return nil, "", fmt.Errorf("failed to write json field: %w", err)
	}

	for _, img := range images {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, img.Filename))
		contentType := img.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (c *HumeClient) createJobOnce(ctx context.Context, body []byte, contentType string) (jobID string, status int, retry bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, "POST", c.apiURL+"/batch/jobs", bytes.NewReader(body))
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Hume-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller gave up; retrying would outlive it.
		if ctx.Err() != nil {
			return "", 0, false, ctx.Err()
		}
		// Only a failed dial guarantees the request never reached the API.
		// A timeout or a dropped connection may have left a job behind.
		return "", 0, isDialError(err), fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable
		return "", resp.StatusCode, retry, fmt.Errorf("Hume API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var created createJobResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", resp.StatusCode, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if created.JobID == "" {
		return "", resp.StatusCode, false, fmt.Errorf("%w: response has no job_id", ErrMalformedPayload)
	}

	return created.JobID, resp.StatusCode, false, nil
}

// GetJobPredictions fetches the results of a finished job. It is used to
// recover jobs whose callback never arrived.
func (c *HumeClient) GetJobPredictions(ctx context.Context, jobID string) ([]ImageResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/batch/jobs/%s/predictions", c.apiURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(reqCtx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Hume-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Hume API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return ParseJobPredictions(body)
}

// IsRetryable reports whether a submission error may succeed when the whole
// ingestion is retried later.
func IsRetryable(err error) bool {
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		return false
	}
	return submitErr.StatusCode == 0 || submitErr.StatusCode == http.StatusTooManyRequests || submitErr.StatusCode >= 500
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
