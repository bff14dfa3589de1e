package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/models"
	"github.com/kdimtricp/humetube/internal/storage"
)

type mockProvider struct {
	mu     sync.Mutex
	jobID  string
	err    error
	calls  int
	images [][]ai.Image
}

func (m *mockProvider) CreateJob(ctx context.Context, images []ai.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.images = append(m.images, images)
	if m.err != nil {
		return "", m.err
	}
	return m.jobID, nil
}

type mockDecoder struct {
	failOn string
}

func (m *mockDecoder) Decode(ctx context.Context, payload string, index int) (ai.Image, error) {
	if m.failOn != "" && payload == m.failOn {
		return ai.Image{}, errors.New("not an image")
	}
	return ai.Image{
		Filename:    ai.SnapshotFilename(index, "image/jpeg"),
		ContentType: "image/jpeg",
		Data:        []byte(payload),
	}, nil
}

type enqueued struct {
	VideoID string
	Delay   time.Duration
}

type mockScheduler struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (m *mockScheduler) Enqueue(ctx context.Context, videoID string, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, enqueued{VideoID: videoID, Delay: delay})
	return nil
}

type mockNotifier struct {
	mu        sync.Mutex
	published []*models.Analysis
}

func (m *mockNotifier) Publish(analysis *models.Analysis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, analysis)
}

// failingStore accepts reads but rejects every write.
type failingStore struct {
	*storage.MemoryStore
}

func (f failingStore) Set(ctx context.Context, key string, value []byte) error {
	return fmt.Errorf("write %s: disk full", key)
}

func (f failingStore) SetAll(ctx context.Context, entries []storage.Entry) error {
	return errors.New("disk full")
}

type testEnv struct {
	store     *storage.MemoryStore
	provider  *mockProvider
	scheduler *mockScheduler
	notifier  *mockNotifier
	service   *Service
}

func newTestEnv(jobID string) *testEnv {
	env := &testEnv{
		store:     storage.NewMemoryStore(),
		provider:  &mockProvider{jobID: jobID},
		scheduler: &mockScheduler{},
		notifier:  &mockNotifier{},
	}
	env.service = NewService(env.store, env.provider, &mockDecoder{}, env.scheduler, env.notifier, NewConfig())
	return env
}

func snapshot(videoID string, ts int64) models.Snapshot {
	return models.Snapshot{VideoID: videoID, Timestamp: ts, ImagePayload: fmt.Sprintf("img-%s-%d", videoID, ts)}
}

func result(index int, scores ...ai.EmotionScore) ai.ImageResult {
	return ai.ImageResult{
		Filename:   ai.SnapshotFilename(index, "image/jpeg"),
		Detections: scores,
	}
}

func score(name string, value float64) ai.EmotionScore {
	return ai.EmotionScore{Name: name, Score: value}
}
